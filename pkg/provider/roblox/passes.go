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

// passFields builds the multipart form shared by create and update. The two
// endpoints name their icon part differently, hence iconField.
func (c *Client) passFields(fields engine.PassFields, iconField string) (*form, error) {
	f := (&form{}).
		text("name", fields.Name).
		text("description", fields.Description).
		text("isForSale", strconv.FormatBool(fields.ForSale)).
		text("isRegionalPricingEnabled", strconv.FormatBool(fields.RegionalPricing))
	if fields.Price != nil {
		f.text("price", strconv.FormatInt(*fields.Price, 10))
	}
	if fields.Icon != nil {
		data, err := c.processIcon(fields.Icon)
		if err != nil {
			return nil, err
		}
		f.file(iconField, data)
	}
	return f, nil
}

// CreatePass creates a game pass via Open Cloud.
func (c *Client) CreatePass(ctx context.Context, fields engine.PassFields) (*engine.RemotePass, error) {
	f, err := c.passFields(fields, "imageFile")
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/game-passes/v1/universes/%d/game-passes", c.apisBase, c.universeID)
	body, err := c.do(ctx, func() (*http.Request, error) {
		return f.request(ctx, http.MethodPost, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var pass gamePass
	if err := json.Unmarshal(body, &pass); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return pass.toRemote(), nil
}

// UpdatePass patches a game pass. The endpoint replies 204 No Content; the
// returned value is nil then, an empty acknowledgement.
func (c *Client) UpdatePass(ctx context.Context, id int64, fields engine.PassFields) (*engine.RemotePass, error) {
	f, err := c.passFields(fields, "file")
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/game-passes/v1/universes/%d/game-passes/%d", c.apisBase, c.universeID, id)
	body, err := c.do(ctx, func() (*http.Request, error) {
		return f.request(ctx, http.MethodPatch, endpoint)
	})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var pass gamePass
	if err := json.Unmarshal(body, &pass); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return pass.toRemote(), nil
}

// GetPass fetches one game pass with creator-visible fields.
func (c *Client) GetPass(ctx context.Context, id int64) (*engine.RemotePass, error) {
	endpoint := fmt.Sprintf("%s/game-passes/v1/universes/%d/game-passes/%d/creator", c.apisBase, c.universeID, id)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var pass gamePass
	if err := json.Unmarshal(body, &pass); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return pass.toRemote(), nil
}

// ListPasses pages through every game pass of the universe.
func (c *Client) ListPasses(ctx context.Context) ([]engine.RemotePass, error) {
	var all []engine.RemotePass
	pageToken := ""

	for {
		endpoint := fmt.Sprintf("%s/game-passes/v1/universes/%d/game-passes/creator?pageSize=100", c.apisBase, c.universeID)
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}

		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		var list listGamePassesResponse
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
		}
		for i := range list.GamePasses {
			all = append(all, *list.GamePasses[i].toRemote())
		}

		if list.NextPageToken == nil || *list.NextPageToken == "" {
			return all, nil
		}
		pageToken = *list.NextPageToken
	}
}
