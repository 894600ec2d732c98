package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/storefront-sync/models"
)

const tokenHeader = "X-Shopify-Access-Token"

// Client talks to the destination shop's GraphQL Admin API.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewClient builds a client for shop. A nil httpClient gets a 30s timeout.
func NewClient(shop, token, apiVersion string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	shop = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(shop, "https://"), "http://"), "/")
	return &Client{
		endpoint: fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, apiVersion),
		token:    token,
		client:   httpClient,
	}
}

// Endpoint returns the GraphQL URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	slog.Debug("admin api call",
		slog.String("operation", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return &GraphQLError{Messages: msgs}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", op, err)
	}
	return nil
}

// CreateProduct creates a product without variants and returns its id. The
// platform attaches one default variant.
func (c *Client) CreateProduct(ctx context.Context, input models.ProductInput) (string, error) {
	var data struct {
		ProductCreate struct {
			Product *struct {
				ID string `json:"id"`
			} `json:"product"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"productCreate"`
	}
	if err := c.do(ctx, "productCreate", productCreateMutation, map[string]any{"product": input}, &data); err != nil {
		return "", err
	}
	if err := userErrors("productCreate", data.ProductCreate.UserErrors); err != nil {
		return "", err
	}
	if data.ProductCreate.Product == nil || data.ProductCreate.Product.ID == "" {
		return "", errors.New("productCreate: no product returned")
	}
	return data.ProductCreate.Product.ID, nil
}

type variantNode struct {
	ID            string `json:"id"`
	InventoryItem struct {
		ID string `json:"id"`
	} `json:"inventoryItem"`
}

func (n variantNode) ref() models.VariantRef {
	return models.VariantRef{ID: n.ID, InventoryItemID: n.InventoryItem.ID}
}

// DefaultVariant looks up the variant the platform created with productID.
func (c *Client) DefaultVariant(ctx context.Context, productID string) (models.VariantRef, error) {
	var data struct {
		Product *struct {
			Variants struct {
				Nodes []variantNode `json:"nodes"`
			} `json:"variants"`
		} `json:"product"`
	}
	if err := c.do(ctx, "defaultVariant", defaultVariantQuery, map[string]any{"id": productID}, &data); err != nil {
		return models.VariantRef{}, err
	}
	if data.Product == nil || len(data.Product.Variants.Nodes) == 0 {
		return models.VariantRef{}, fmt.Errorf("product %s has no default variant", productID)
	}
	return data.Product.Variants.Nodes[0].ref(), nil
}

type weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type measurement struct {
	Weight weight `json:"weight"`
}

type inventoryItemInput struct {
	SKU              string       `json:"sku,omitempty"`
	RequiresShipping *bool        `json:"requiresShipping,omitempty"`
	Measurement      *measurement `json:"measurement,omitempty"`
}

type variantBulkInput struct {
	ID             string              `json:"id,omitempty"`
	Price          string              `json:"price"`
	CompareAtPrice *string             `json:"compareAtPrice,omitempty"`
	Taxable        bool                `json:"taxable"`
	InventoryItem  *inventoryItemInput `json:"inventoryItem,omitempty"`
}

func bulkInput(id string, v models.VariantInput) variantBulkInput {
	shipping := v.RequiresShipping
	return variantBulkInput{
		ID:             id,
		Price:          v.Price,
		CompareAtPrice: v.CompareAtPrice,
		Taxable:        v.Taxable,
		InventoryItem: &inventoryItemInput{
			RequiresShipping: &shipping,
			Measurement:      &measurement{Weight: weight{Value: float64(v.WeightGrams), Unit: "GRAMS"}},
		},
	}
}

// UpdateVariantPrice sets the price, compare-at price, and weight of an
// existing variant.
func (c *Client) UpdateVariantPrice(ctx context.Context, productID, variantID string, v models.VariantInput) error {
	var data struct {
		Payload struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	vars := map[string]any{
		"productId": productID,
		"variants":  []variantBulkInput{bulkInput(variantID, v)},
	}
	if err := c.do(ctx, "productVariantsBulkUpdate", variantsBulkUpdateMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("productVariantsBulkUpdate", data.Payload.UserErrors)
}

// CreateVariant adds one more variant to productID.
func (c *Client) CreateVariant(ctx context.Context, productID string, v models.VariantInput) (models.VariantRef, error) {
	var data struct {
		Payload struct {
			ProductVariants []variantNode `json:"productVariants"`
			UserErrors      []UserError   `json:"userErrors"`
		} `json:"productVariantsBulkCreate"`
	}
	vars := map[string]any{
		"productId": productID,
		"variants":  []variantBulkInput{bulkInput("", v)},
	}
	if err := c.do(ctx, "productVariantsBulkCreate", variantsBulkCreateMutation, vars, &data); err != nil {
		return models.VariantRef{}, err
	}
	if err := userErrors("productVariantsBulkCreate", data.Payload.UserErrors); err != nil {
		return models.VariantRef{}, err
	}
	if len(data.Payload.ProductVariants) == 0 {
		return models.VariantRef{}, errors.New("productVariantsBulkCreate: no variant returned")
	}
	return data.Payload.ProductVariants[0].ref(), nil
}

// SetInventorySKU attaches sku to an inventory item.
func (c *Client) SetInventorySKU(ctx context.Context, inventoryItemID, sku string) error {
	var data struct {
		Payload struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"inventoryItemUpdate"`
	}
	vars := map[string]any{
		"id":    inventoryItemID,
		"input": inventoryItemInput{SKU: sku},
	}
	if err := c.do(ctx, "inventoryItemUpdate", inventoryItemUpdateMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("inventoryItemUpdate", data.Payload.UserErrors)
}

// CreateMedia attaches images to productID in one call.
func (c *Client) CreateMedia(ctx context.Context, productID string, media []models.MediaInput) error {
	if len(media) == 0 {
		return nil
	}
	var data struct {
		Payload struct {
			MediaUserErrors []UserError `json:"mediaUserErrors"`
		} `json:"productCreateMedia"`
	}
	vars := map[string]any{
		"productId": productID,
		"media":     media,
	}
	if err := c.do(ctx, "productCreateMedia", productCreateMediaMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("productCreateMedia", data.Payload.MediaUserErrors)
}

// DeleteProduct removes a product by id. Bare numeric ids are accepted.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	var data struct {
		Payload struct {
			DeletedProductID *string     `json:"deletedProductId"`
			UserErrors       []UserError `json:"userErrors"`
		} `json:"productDelete"`
	}
	vars := map[string]any{"input": map[string]string{"id": ProductGID(id)}}
	if err := c.do(ctx, "productDelete", productDeleteMutation, vars, &data); err != nil {
		return err
	}
	if err := userErrors("productDelete", data.Payload.UserErrors); err != nil {
		return err
	}
	if data.Payload.DeletedProductID == nil {
		return fmt.Errorf("productDelete: %s was not deleted", id)
	}
	return nil
}

type productNode struct {
	models.AdminProduct
	FeaturedImage *struct {
		URL string `json:"url"`
	} `json:"featuredImage"`
	VariantConn struct {
		Nodes []models.AdminVariant `json:"nodes"`
	} `json:"variants"`
}

func (n productNode) product() models.AdminProduct {
	p := n.AdminProduct
	if n.FeaturedImage != nil {
		p.ImageURL = n.FeaturedImage.URL
	}
	p.Variants = n.VariantConn.Nodes
	if p.Variants == nil {
		p.Variants = []models.AdminVariant{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

// ListProducts returns one page of destination products. first is clamped
// to the platform's 1..250 range.
func (c *Client) ListProducts(ctx context.Context, first int, after, query string) (*models.ProductPage, error) {
	if first <= 0 {
		first = 50
	}
	if first > 250 {
		first = 250
	}
	vars := map[string]any{"first": first}
	if after != "" {
		vars["after"] = after
	}
	if query != "" {
		vars["query"] = query
	}

	var data struct {
		Products struct {
			PageInfo models.PageInfo `json:"pageInfo"`
			Nodes    []productNode   `json:"nodes"`
		} `json:"products"`
	}
	if err := c.do(ctx, "products", productsQuery, vars, &data); err != nil {
		return nil, err
	}

	page := &models.ProductPage{
		Products: make([]models.AdminProduct, 0, len(data.Products.Nodes)),
		PageInfo: data.Products.PageInfo,
	}
	for _, n := range data.Products.Nodes {
		page.Products = append(page.Products, n.product())
	}
	return page, nil
}

// GetProduct fetches one product by id.
func (c *Client) GetProduct(ctx context.Context, id string) (*models.AdminProduct, error) {
	var data struct {
		Product *productNode `json:"product"`
	}
	if err := c.do(ctx, "product", productQuery, map[string]any{"id": ProductGID(id)}, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	p := data.Product.product()
	return &p, nil
}

// ProductGID expands a bare numeric product id into a global id.
func ProductGID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return "gid://shopify/Product/" + id
}
