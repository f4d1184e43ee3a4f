package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DownloadAsset fetches an asset's raw bytes via the asset delivery API. The
// API returns a signed CDN location first; the second request carries no
// credentials.
func (c *Client) DownloadAsset(ctx context.Context, assetID int64) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/asset-delivery-api/v1/assetId/%d", c.apisBase, assetID)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp assetDeliveryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, body)
	}
	if resp.Location == "" {
		return nil, fmt.Errorf("asset %d: delivery response carries no location", assetID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resp.Location, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset %d: download failed with status %d", assetID, res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
