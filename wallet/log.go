// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wallet

import "github.com/pterm/pterm"

var log = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)

// UseLogger sets the logger used by the wallet.
func UseLogger(logger *pterm.Logger) {
	log = logger
}
