package cart

// The legacy storefront spelled the same logical field many ways depending
// on which screen wrote the cart. Each logical field resolves through one
// precedence-ordered candidate list, kept here and nowhere else; the first
// candidate present in the source object wins.
var fieldAliases = map[string][]string{
	"totalPrice":      {"totalPrice", "setPrice", "dealPrice", "price", "cost"},
	"label":           {"name", "title", "label", "setName", "dealName"},
	"quantity":        {"quantity", "qty"},
	"jewelleryId":     {"jewelleryId", "itemId", "item", "id"},
	"size":            {"size", "ringSize"},
	"memberPrice":     {"price", "unitPrice", "cost"},
	"buyQuantity":     {"buyQuantity", "buy"},
	"getQuantity":     {"getQuantity", "get"},
	"discountPercent": {"discountPercent", "discount"},
	"buyItems":        {"buyItems", "buy_items"},
	"getItems":        {"getItems", "get_items"},
	"members":         {"items", "members", "jewellery"},
}
