// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import "github.com/google/uuid"

// NonceFunc returns a fresh nonce for a new session.
type NonceFunc func() Nonce

// DefaultNonce is the default NonceFunc (§6 Configuration: "default uses a
// UUID source if available"), mirroring the teacher's own use of
// uuid.New().String() for per-packet identifiers in machine.go.
func DefaultNonce() Nonce {
	return "__tson_" + uuid.NewString()
}
