package store

// SQL query constants organized by entity. The two dialects share
// everything except bind placeholders.

// Listing queries.
const (
	listingColumns = `l.id, l.seller_id, l.title, COALESCE(l.description, ''), COALESCE(l.category, ''),
	l.quantity, COALESCE(l.unit, ''), l.price, l.original_price, l.expiry_date,
	l.status, l.created_at, l.completed_at, COALESCE(u.name, ''), COALESCE(u.avatar_url, '')`

	baseListingsSelect = `SELECT ` + listingColumns + `
FROM marketplace_listings l
LEFT JOIN users u ON u.id = l.seller_id`

	queryPriceListings = baseListingsSelect + `
WHERE l.original_price IS NOT NULL
  AND l.original_price > 0
  AND l.price IS NOT NULL
ORDER BY l.id`

	queryGetListingPostgres = baseListingsSelect + `
WHERE l.id = $1`

	queryGetListingSQLite = baseListingsSelect + `
WHERE l.id = ?`
)

// Corpus queries.
const (
	queryCorpusListings = `
		SELECT title, COALESCE(description, ''), COALESCE(category, '')
		FROM marketplace_listings
		ORDER BY id`

	queryCorpusProducts = `
		SELECT product_name, COALESCE(description, ''), COALESCE(category, '')
		FROM products
		ORDER BY id`

	queryInteractions = `
		SELECT psm.id, COALESCE(psm.product_id, 0), psm.user_id, psm.type,
			COALESCE(psm.quantity, 0), COALESCE(p.category, ''), psm.today_date
		FROM product_sustainability_metrics psm
		LEFT JOIN products p ON psm.product_id = p.id
		WHERE psm.type IS NOT NULL
		ORDER BY psm.id`

	queryCategoryActions = `
		SELECT psm.user_id, p.category, psm.type, COUNT(*) AS action_count
		FROM product_sustainability_metrics psm
		JOIN products p ON psm.product_id = p.id
		WHERE psm.type IN ('consumed', 'shared', 'sold')
		  AND p.category IS NOT NULL
		GROUP BY psm.user_id, p.category, psm.type
		ORDER BY psm.user_id, p.category, psm.type`
)

// Summary queries.
const (
	queryCountUsers = `SELECT COUNT(*) FROM users`

	queryListingsByStatus = `
		SELECT status, COUNT(*)
		FROM marketplace_listings
		GROUP BY status`

	queryCountListingsWithPrices = `
		SELECT COUNT(*) FROM marketplace_listings
		WHERE original_price IS NOT NULL
		  AND original_price > 0
		  AND price IS NOT NULL`

	queryCountSoldListings = `
		SELECT COUNT(*) FROM marketplace_listings
		WHERE status = 'sold'
		  AND original_price IS NOT NULL
		  AND price IS NOT NULL`

	queryCountInteractions = `SELECT COUNT(*) FROM product_sustainability_metrics`

	queryCountUsersWithInteractions = `
		SELECT COUNT(DISTINCT user_id)
		FROM product_sustainability_metrics`

	queryCountProducts = `SELECT COUNT(*) FROM products`
)
