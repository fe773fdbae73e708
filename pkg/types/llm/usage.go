package llm

import "sync"

// Usage represents token usage of model calls
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// TotalTokens returns the total number of tokens used
func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// UsageCounter accumulates usage across calls. The zero value is ready to use.
type UsageCounter struct {
	mu    sync.Mutex
	total Usage
}

// Record adds u to the running total.
func (c *UsageCounter) Record(u Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = c.total.Add(u)
}

// Usage returns the running total.
func (c *UsageCounter) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
