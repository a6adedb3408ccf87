package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyMarshalsAsNumber(t *testing.T) {
	o := Order{
		ID:    "o1",
		Items: []OrderLineItem{{ProductID: "1", Price: decimal.RequireFromString("49.99"), Quantity: 2}},
		Total: decimal.RequireFromString("99.98"),
	}

	b, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"total":99.98`)
	assert.Contains(t, string(b), `"price":49.99`)

	var back Order
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Total.Equal(o.Total))
}
