package graphdb

// 名称匹配双向 CONTAINS：问题中提到的名称也能命中
const productSearchCypher = `
MATCH (p:Product)
WHERE size($query) > 0 AND size(p.name) > 0
  AND (toLower(p.name) CONTAINS $query OR $query CONTAINS toLower(p.name))
WITH p ORDER BY p.name LIMIT 5
OPTIONAL MATCH (s:Shop)-[:SELLS]->(p)
WITH p, collect(DISTINCT s.name) AS shops
OPTIONAL MATCH (p)-[:RELATED_TO]-(r:Product)
RETURN p.name AS name, p.price AS price, p.discount_price AS discount_price,
       p.category AS category, shops, collect(DISTINCT r.name)[..5] AS related
ORDER BY name`

// 只按店名匹配
const shopSearchCypher = `
MATCH (s:Shop)
WHERE size($query) > 0 AND size(s.name) > 0
  AND (toLower(s.name) CONTAINS $query OR $query CONTAINS toLower(s.name))
WITH s ORDER BY s.name LIMIT 3
OPTIONAL MATCH (s)-[:SELLS]->(p:Product)
WITH s, collect(DISTINCT p.name)[..5] AS products
RETURN s.name AS name, s.address AS address, s.phone AS phone,
       s.delivery_charge AS delivery_charge, s.service_charge AS service_charge, products
ORDER BY name`

const (
	pingCypher  = `RETURN 1 AS ok`
	clearCypher = `MATCH (n) DETACH DELETE n`

	createProductsCypher = `UNWIND $rows AS row CREATE (p:Product) SET p = row`
	createShopsCypher    = `UNWIND $rows AS row CREATE (s:Shop) SET s = row`
	createUsersCypher    = `UNWIND $rows AS row CREATE (u:User) SET u = row`
	createInvoicesCypher = `UNWIND $rows AS row CREATE (i:Invoice) SET i = row`

	sellsCypher = `
UNWIND $rows AS row
MATCH (s:Shop {name: row.shop}), (p:Product {name: row.product})
MERGE (s)-[r:SELLS]->(p)
SET r.since = datetime()`

	purchasedCypher = `
UNWIND $rows AS row
MATCH (u:User {key: row.user}), (p:Product {name: row.product})
CREATE (u)-[:PURCHASED {invoice_id: row.invoice, quantity: row.quantity, price: row.price, date: row.date}]->(p)`

	ownsCypher = `
MATCH (u:User), (s:Shop)
WHERE size(u.name) > 0 AND u.name = s.owner
MERGE (u)-[:OWNS]->(s)`

	relatedCypher = `
UNWIND $rows AS row
MATCH (a:Product {name: row.a}), (b:Product {name: row.b})
MERGE (a)-[r:RELATED_TO]->(b)
SET r.weight = row.weight, r.last_updated = datetime()`
)
