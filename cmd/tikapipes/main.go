/***** BEGIN LICENSE BLOCK *****
# This Source Code Form is subject to the terms of the Mozilla Public
# License, v. 2.0. If a copy of the MPL was not distributed with this file,
# You can obtain one at http://mozilla.org/MPL/2.0/.
#
# The Initial Developer of the Original Code is the Mozilla Foundation.
# Portions created by the Initial Developer are Copyright (C) 2012-2015
# the Initial Developer. All Rights Reserved.
#
# ***** END LICENSE BLOCK *****/

// Command tikapipes runs the Tika Pipes extraction orchestrator.
package main

import (
	"os"

	_ "modernc.org/sqlite"
)

func main() {
	os.Exit(Execute())
}
