package muxctl

import "context"

// Set issues a `set <entity> <field> <value>` command.
func (c *Client) Set(ctx context.Context, entity, field, value string) (Reply, error) {
	return c.Send(ctx, "set", entity, field, value)
}

// Get issues a `get <entity> <field>` command.
func (c *Client) Get(ctx context.Context, entity, field string) (Reply, error) {
	return c.Send(ctx, "get", entity, field)
}
