package cart_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-storefront-client/cart"
)

func quantities(q map[string]int) cart.Cart {
	c := cart.Cart{}
	for id, n := range q {
		c.Items = append(c.Items, cart.Item{ProductID: id, Quantity: n})
	}
	return c
}

// apply plays the writes against a server cart the way the backend would.
func apply(server map[string]int, writes []cart.Write) map[string]int {
	out := make(map[string]int, len(server))
	for id, n := range server {
		out[id] = n
	}
	for _, w := range writes {
		if w.Create {
			out[w.ProductID] += w.Quantity
		} else {
			out[w.ProductID] = w.Quantity
		}
	}
	return out
}

func TestPlanMerge(t *testing.T) {
	t.Run("login with an existing server cart", func(t *testing.T) {
		server := map[string]int{"p-1001": 1, "p-1002": 3}
		local := map[string]int{"p-1001": 2}

		writes := cart.PlanMerge(quantities(server), quantities(local))
		require.Equal(t, []cart.Write{{ProductID: "p-1001", Quantity: 2}}, writes)
		require.Equal(t, map[string]int{"p-1001": 2, "p-1002": 3}, apply(server, writes))
	})

	t.Run("local only lines are created", func(t *testing.T) {
		writes := cart.PlanMerge(cart.Cart{}, quantities(map[string]int{"p-1005": 4}))
		require.Equal(t, []cart.Write{{ProductID: "p-1005", Quantity: 4, Create: true}}, writes)
	})

	t.Run("server quantity is never lowered", func(t *testing.T) {
		writes := cart.PlanMerge(quantities(map[string]int{"p-1001": 5}), quantities(map[string]int{"p-1001": 2}))
		require.Empty(t, writes)
	})

	t.Run("empty local cart plans nothing", func(t *testing.T) {
		require.Empty(t, cart.PlanMerge(quantities(map[string]int{"p-1001": 5}), cart.Cart{}))
	})
}

func TestPlanMerge_Properties(t *testing.T) {
	cases := []struct {
		server map[string]int
		local  map[string]int
	}{
		{map[string]int{}, map[string]int{"a": 1}},
		{map[string]int{"a": 3}, map[string]int{"a": 1}},
		{map[string]int{"a": 1}, map[string]int{"a": 3}},
		{map[string]int{"a": 2, "b": 2}, map[string]int{"b": 5, "c": 1}},
		{map[string]int{"a": 7, "b": 1, "c": 4}, map[string]int{"a": 7, "b": 9, "c": 1, "d": 2}},
	}

	for _, tc := range cases {
		merged := apply(tc.server, cart.PlanMerge(quantities(tc.server), quantities(tc.local)))

		// monotonic: every product ends at max(server, local)
		for id, s := range tc.server {
			require.Equal(t, max(s, tc.local[id]), merged[id])
		}
		for id, l := range tc.local {
			require.Equal(t, max(tc.server[id], l), merged[id])
		}

		// idempotent: planning again against the result writes nothing
		require.Empty(t, cart.PlanMerge(quantities(merged), quantities(tc.local)))
	}
}
