package admin

const productFields = `
	id
	title
	handle
	descriptionHtml
	vendor
	productType
	status
	tags
	totalInventory
	createdAt
	featuredImage { url }
	variants(first: 100) {
		nodes { id title price compareAtPrice sku }
	}`

const productCreateMutation = `
mutation productCreate($product: ProductCreateInput!) {
	productCreate(product: $product) {
		product { id title }
		userErrors { field message }
	}
}`

const defaultVariantQuery = `
query defaultVariant($id: ID!) {
	product(id: $id) {
		variants(first: 1) {
			nodes { id inventoryItem { id } }
		}
	}
}`

const variantsBulkUpdateMutation = `
mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
	productVariantsBulkUpdate(productId: $productId, variants: $variants) {
		productVariants { id }
		userErrors { field message }
	}
}`

const variantsBulkCreateMutation = `
mutation productVariantsBulkCreate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
	productVariantsBulkCreate(productId: $productId, variants: $variants) {
		productVariants { id inventoryItem { id } }
		userErrors { field message }
	}
}`

const inventoryItemUpdateMutation = `
mutation inventoryItemUpdate($id: ID!, $input: InventoryItemInput!) {
	inventoryItemUpdate(id: $id, input: $input) {
		inventoryItem { id sku }
		userErrors { field message }
	}
}`

const productCreateMediaMutation = `
mutation productCreateMedia($productId: ID!, $media: [CreateMediaInput!]!) {
	productCreateMedia(productId: $productId, media: $media) {
		media { alt mediaContentType status }
		mediaUserErrors { field message }
	}
}`

const productDeleteMutation = `
mutation productDelete($input: ProductDeleteInput!) {
	productDelete(input: $input) {
		deletedProductId
		userErrors { field message }
	}
}`

const productsQuery = `
query products($first: Int!, $after: String, $query: String) {
	products(first: $first, after: $after, query: $query) {
		pageInfo { hasNextPage endCursor }
		nodes {` + productFields + `
		}
	}
}`

const productQuery = `
query product($id: ID!) {
	product(id: $id) {` + productFields + `
	}
}`
