package cart

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Normalize turns any cart payload the backends are known to return into a
// Cart. It reports false when the payload holds no recognisable cart, so
// callers can fall back to local state.
//
// Line items are looked up under items, cartItems, cart.items, cart.cartItems
// or a bare array, in that order. A null line list, a cart object without
// one, or an object carrying cart fields such as id or totalAmount but no
// lines is an empty cart. Per line:
//
//	product id  productId > product_id > product.id > id
//	price       price > priceAtTime > unitPrice > product.price
//	image       imageUrl > image > product.imageUrl > product.image
//	name        name > productName > product.name
//	category    category > product.category (a string or an object's name)
//
// Numbers may be JSON numbers or numeric strings. Lines without a product id
// or with a quantity below 1 are dropped.
func Normalize(payload []byte) (Cart, bool) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Cart{}, false
	}

	var root any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return Cart{}, false
	}

	lines, ok := findLines(root)
	if !ok {
		return Cart{}, false
	}

	out := Cart{Items: make([]Item, 0, len(lines))}
	seen := make(map[string]int, len(lines))
	for _, raw := range lines {
		line, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		it, ok := normalizeLine(line)
		if !ok {
			continue
		}
		if i, dup := seen[it.ProductID]; dup {
			out.Items[i].Quantity += it.Quantity
			continue
		}
		seen[it.ProductID] = len(out.Items)
		out.Items = append(out.Items, it)
	}
	return out, true
}

// cartMarkers are fields only a cart object carries. An object holding one
// of them but no line list is an empty cart.
var cartMarkers = []string{"id", "cartId", "userId", "totalAmount", "subtotal", "total"}

func findLines(root any) ([]any, bool) {
	switch v := root.(type) {
	case []any:
		return v, true
	case map[string]any:
		lines, found, spoiled := lineList(v)
		if found {
			return lines, true
		}
		if spoiled {
			return nil, false
		}
		raw, present := v["cart"]
		switch c := raw.(type) {
		case []any:
			return c, true
		case map[string]any:
			lines, found, spoiled := lineList(c)
			return lines, found || !spoiled
		case nil:
			if present {
				return nil, true
			}
		}
		if looksLikeLine(v) {
			return nil, false
		}
		for _, key := range cartMarkers {
			if _, ok := v[key]; ok {
				return nil, true
			}
		}
	}
	return nil, false
}

// looksLikeLine catches a write answered with the single changed line, which
// says nothing about the rest of the cart.
func looksLikeLine(m map[string]any) bool {
	for _, key := range []string{"productId", "product_id", "product", "quantity", "qty"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

// lineList returns the first line list under items or cartItems. A key
// present as null is an empty list; one holding anything else is spoiled.
func lineList(m map[string]any) (lines []any, found, spoiled bool) {
	for _, key := range []string{"items", "cartItems"} {
		raw, present := m[key]
		switch l := raw.(type) {
		case []any:
			return l, true, false
		case nil:
			found = found || present
		default:
			spoiled = true
		}
	}
	return nil, found, spoiled
}

func normalizeLine(line map[string]any) (Item, bool) {
	product, _ := line["product"].(map[string]any)
	field := func(key string) any {
		if product == nil {
			return nil
		}
		return product[key]
	}

	it := Item{
		ProductID: firstString(line["productId"], line["product_id"], field("id"), line["id"]),
		Name:      firstString(line["name"], line["productName"], field("name")),
		ImageURL:  firstString(line["imageUrl"], line["image"], field("imageUrl"), field("image")),
		Category:  firstString(categoryName(line["category"]), categoryName(field("category"))),
	}
	if price, ok := firstNumber(line["price"], line["priceAtTime"], line["unitPrice"], field("price")); ok {
		it.Price = price
	}
	qty, ok := firstNumber(line["quantity"], line["qty"])
	if !ok {
		return Item{}, false
	}
	it.Quantity = int(qty)

	if it.ProductID == "" || it.Quantity < 1 {
		return Item{}, false
	}
	return it, true
}

func categoryName(v any) any {
	if m, ok := v.(map[string]any); ok {
		return m["name"]
	}
	return v
}

func firstString(values ...any) string {
	for _, v := range values {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		}
	}
	return ""
}

func firstNumber(values ...any) (float64, bool) {
	for _, v := range values {
		switch t := v.(type) {
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
