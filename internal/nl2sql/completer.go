package nl2sql

import "context"

// Prompt is one system/user exchange sent to a language model.
type Prompt struct {
	System string
	User   string
}

// Completer returns the model's raw text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}
