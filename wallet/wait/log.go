// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package wait

import "github.com/tonwallet/walletcore/wallet"

var log = wallet.Disabled

// UseLogger sets the package logger.
func UseLogger(logger wallet.Logger) {
	log = logger
}
