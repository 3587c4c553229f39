// Package mock provides test doubles for restream interfaces using function
// fields.
package mock

import "github.com/fwojciec/restream"

// Interface compliance checks.
var (
	_ restream.Source = (*Source)(nil)
	_ restream.Sink   = (*Sink)(nil)
)
