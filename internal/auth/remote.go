package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

const DefaultVerifyURL = "https://api.unkey.dev/v1/keys.verifyKey"

type verifyRequest struct {
	APIID string `json:"apiId"`
	Key   string `json:"key"`
}

type verifyResponse struct {
	Valid       bool   `json:"valid"`
	Code        string `json:"code"`
	KeyID       string `json:"keyId"`
	OwnerID     string `json:"ownerId"`
	Environment string `json:"environment"`
	Meta        struct {
		Type  string `json:"type"`
		AppID string `json:"appId"`
	} `json:"meta"`
}

// RemoteVerifier checks keys with an external key-management service.
// Positive results are cached briefly so a burst of requests with the same
// key costs one round trip.
type RemoteVerifier struct {
	url    string
	client *http.Client
	cache  *cache.Cache
}

func NewRemoteVerifier(url string, cacheTTL time.Duration) *RemoteVerifier {
	if url == "" {
		url = DefaultVerifyURL
	}

	return &RemoteVerifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  cache.New(cacheTTL, 2*cacheTTL),
	}
}

func cacheKey(apiID, key string) string {
	sum := sha256.Sum256([]byte(apiID + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

func (v *RemoteVerifier) Verify(ctx context.Context, apiID, key string) (Identity, error) {
	if key == "" {
		return Identity{}, ErrInvalidKey
	}

	ck := cacheKey(apiID, key)
	if cached, ok := v.cache.Get(ck); ok {
		return cached.(Identity), nil
	}

	body, err := json.Marshal(verifyRequest{APIID: apiID, Key: key})
	if err != nil {
		return Identity{}, fmt.Errorf("encoding verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("creating verify request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verifying key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("verifying key: unexpected status code %d", resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return Identity{}, fmt.Errorf("decoding verify response: %w", err)
	}

	if !vr.Valid {
		return Identity{}, fmt.Errorf("%w: %s", ErrInvalidKey, vr.Code)
	}

	id := Identity{
		KeyID:       vr.KeyID,
		OwnerID:     vr.OwnerID,
		Environment: Environment(vr.Environment),
		Type:        KeyType(vr.Meta.Type),
		AppID:       vr.Meta.AppID,
	}

	v.cache.SetDefault(ck, id)

	return id, nil
}
