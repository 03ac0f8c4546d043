// Copyright © 2021 Jonathan Whitaker <jonathan@whitaker.io>

package cmd

import (
	"github.com/streamson-io/tson"
	"github.com/streamson-io/tson/structtag"
)

// Envelope is the worked example struct behind encode/decode's --envelope
// flag: a concrete Go type, not a generic map, so the session actually
// exercises structtag's fold/unfold path on the wire instead of just
// registering an entry nothing ever matches.
type Envelope struct {
	Source string      `json:"source" tson:"source"`
	SentAt int64       `json:"sent_at" tson:"sent_at"`
	Body   interface{} `json:"body" tson:"body"`
}

// envelopeType registers Envelope under the "Envelope" tag key.
func envelopeType() tson.Option {
	return tson.WithTypes(structtag.NewEntry("Envelope", Envelope{}))
}
