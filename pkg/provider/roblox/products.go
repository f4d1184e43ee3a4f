package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rbxsync/rbxsync/pkg/engine"
)

func (c *Client) productFields(fields engine.ProductFields, includeStorePage bool) (*form, error) {
	f := (&form{}).
		text("name", fields.Name).
		text("description", fields.Description).
		text("isForSale", strconv.FormatBool(fields.ForSale)).
		text("isRegionalPricingEnabled", strconv.FormatBool(fields.RegionalPricing)).
		text("price", strconv.FormatInt(fields.Price, 10))
	if includeStorePage {
		f.text("storePageEnabled", strconv.FormatBool(fields.StorePage))
	}
	if fields.Icon != nil {
		data, err := c.processIcon(fields.Icon)
		if err != nil {
			return nil, err
		}
		f.file("imageFile", data)
	}
	return f, nil
}

// CreateProduct creates a developer product via Open Cloud.
func (c *Client) CreateProduct(ctx context.Context, fields engine.ProductFields) (*engine.RemoteProduct, error) {
	f, err := c.productFields(fields, false)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/developer-products/v2/universes/%d/developer-products", c.apisBase, c.universeID)
	body, err := c.do(ctx, func() (*http.Request, error) {
		return f.request(ctx, http.MethodPost, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var product developerProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return product.toRemote(), nil
}

// UpdateProduct patches a developer product. The endpoint validates isForSale
// against the current remote state, which is why taking a store-paged product
// off sale requires two calls; sequencing those is the reconciler's job, this
// method sends exactly what it is given.
func (c *Client) UpdateProduct(ctx context.Context, id int64, fields engine.ProductFields) (*engine.RemoteProduct, error) {
	f, err := c.productFields(fields, true)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/developer-products/v2/universes/%d/developer-products/%d", c.apisBase, c.universeID, id)
	body, err := c.do(ctx, func() (*http.Request, error) {
		return f.request(ctx, http.MethodPatch, endpoint)
	})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var product developerProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return product.toRemote(), nil
}

// GetProduct fetches one developer product with creator-visible fields.
func (c *Client) GetProduct(ctx context.Context, id int64) (*engine.RemoteProduct, error) {
	endpoint := fmt.Sprintf("%s/developer-products/v2/universes/%d/developer-products/%d/creator", c.apisBase, c.universeID, id)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var product developerProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return product.toRemote(), nil
}

// ListProducts pages through every developer product of the universe.
func (c *Client) ListProducts(ctx context.Context) ([]engine.RemoteProduct, error) {
	var all []engine.RemoteProduct
	pageToken := ""

	for {
		endpoint := fmt.Sprintf("%s/developer-products/v2/universes/%d/developer-products/creator?pageSize=50", c.apisBase, c.universeID)
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}

		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		var list listDeveloperProductsResponse
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
		}
		for i := range list.DeveloperProducts {
			all = append(all, *list.DeveloperProducts[i].toRemote())
		}

		if list.NextPageToken == nil || *list.NextPageToken == "" {
			return all, nil
		}
		pageToken = *list.NextPageToken
	}
}
