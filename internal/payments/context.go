package payments

// Context carries the per-run state a report accumulates while building
// payments: which transactions have already been claimed as somebody's
// last payment, and any per-payment amount overrides for the cycle. One
// Context is created per report run, so there is no cross-run reset to
// forget.
type Context struct {
	seen            map[int64]bool
	amountOverrides map[string]float64
}

func NewContext() *Context {
	return &Context{
		seen:            make(map[int64]bool),
		amountOverrides: make(map[string]float64),
	}
}

// Claim marks a transaction id as consumed and reports whether this call
// was the first to claim it. Two payments whose criteria both select the
// same transaction therefore never both report it as their last payment.
func (c *Context) Claim(id int64) bool {
	if c.seen[id] {
		return false
	}
	c.seen[id] = true
	return true
}

// SetAmountOverride pins a payment's display amount for this run,
// taking precedence over every computed value.
func (c *Context) SetAmountOverride(name string, amount float64) {
	c.amountOverrides[name] = amount
}

func (c *Context) AmountOverride(name string) (float64, bool) {
	amount, ok := c.amountOverrides[name]
	return amount, ok
}
