// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Credential monitor (component J): folded into the keep-alive tick per
// spec §4.6.5 step 1, since both run on the same scheduler cadence and
// share the "soft_reset, then clear_failures" recovery path.
package mqttconn

import "time"

// credentialExpired reports whether a token-provider-issued credential has
// passed its expiry, relative to now.
func (c *Connection) credentialExpired(now time.Time) bool {
	return !c.credExpiry.IsZero() && now.After(c.credExpiry)
}
