package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rbxsync/rbxsync/pkg/engine"
)

// Payment source types of the legacy badge creation endpoint.
const (
	paymentSourceUser  = 1
	paymentSourceGroup = 2
)

// CreateBadge creates a badge via the legacy endpoint. Creation charges the
// configured cost to the creator given in fields.PaymentSource.
func (c *Client) CreateBadge(ctx context.Context, fields engine.BadgeFields) (*engine.RemoteBadge, error) {
	paymentSource := paymentSourceUser
	if fields.PaymentSource == "group" || c.creatorIsGroup {
		paymentSource = paymentSourceGroup
	}

	f := (&form{}).
		text("name", fields.Name).
		text("description", fields.Description).
		text("paymentSourceType", strconv.Itoa(paymentSource)).
		text("expectedCost", strconv.FormatInt(fields.Cost, 10)).
		text("isActive", "true")
	if fields.Icon != nil {
		data, err := c.processIcon(fields.Icon)
		if err != nil {
			return nil, err
		}
		f.file("files", data)
	}

	endpoint := fmt.Sprintf("%s/legacy-badges/v1/universes/%d/badges", c.apisBase, c.universeID)
	body, err := c.do(ctx, func() (*http.Request, error) {
		return f.request(ctx, http.MethodPost, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var b badge
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return b.toRemote(), nil
}

// UpdateBadge patches badge fields. Icons go through UpdateBadgeIcon instead.
func (c *Client) UpdateBadge(ctx context.Context, id int64, fields engine.BadgeFields) (*engine.RemoteBadge, error) {
	payload, err := json.Marshal(map[string]any{
		"name":        fields.Name,
		"description": fields.Description,
		"enabled":     fields.Enabled,
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/legacy-badges/v1/badges/%d", c.apisBase, id)
	body, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var b badge
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return b.toRemote(), nil
}

// UpdateBadgeIcon uploads a new badge icon through the legacy publish
// endpoint and returns the new icon asset id when the response carries one.
func (c *Client) UpdateBadgeIcon(ctx context.Context, id int64, iconBytes []byte) (*int64, error) {
	data, err := c.processIcon(iconBytes)
	if err != nil {
		return nil, err
	}
	f := (&form{}).file("Files", data)

	endpoint := fmt.Sprintf("%s/legacy-publish/v1/badges/%d/icon", c.apisBase, id)
	body, err := c.do(ctx, func() (*http.Request, error) {
		return f.request(ctx, http.MethodPost, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var resp badgeIconResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return resp.TargetID, nil
}

// GetBadge fetches one badge by id. Works for disabled badges, which the
// listing endpoint omits.
func (c *Client) GetBadge(ctx context.Context, id int64) (*engine.RemoteBadge, error) {
	endpoint := fmt.Sprintf("%s/v1/badges/%d", c.badgesBase, id)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var b badge
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	return b.toRemote(), nil
}

// ListBadges pages through the universe's badges with cursor pagination.
func (c *Client) ListBadges(ctx context.Context) ([]engine.RemoteBadge, error) {
	var all []engine.RemoteBadge
	cursor := ""

	for {
		endpoint := fmt.Sprintf("%s/v1/universes/%d/badges?limit=100&sortOrder=Asc", c.badgesBase, c.universeID)
		if cursor != "" {
			endpoint += "&cursor=" + url.QueryEscape(cursor)
		}

		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		var list listBadgesResponse
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
		}
		for i := range list.Data {
			all = append(all, *list.Data[i].toRemote())
		}

		if list.NextPageCursor == nil || *list.NextPageCursor == "" {
			return all, nil
		}
		cursor = *list.NextPageCursor
	}
}
