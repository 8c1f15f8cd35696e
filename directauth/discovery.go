package directauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

const discoveryPath = "/.well-known/openid-configuration"

// discoveryDocument is the part of the OpenID provider metadata the flow uses.
type discoveryDocument struct {
	Issuer             string   `json:"issuer"`
	AuthURL            string   `json:"authorization_endpoint"`
	TokenURL           string   `json:"token_endpoint"`
	DeviceAuthURL      string   `json:"device_authorization_endpoint"`
	JWKSURL            string   `json:"jwks_uri"`
	UserInfoURL        string   `json:"userinfo_endpoint"`
	RevocationEndpoint string   `json:"revocation_endpoint"`
	Algorithms         []string `json:"id_token_signing_alg_values_supported"`
}

// discover fetches the provider metadata within the call timeout. The resulting
// provider keeps a detached context for its later JWKS fetches.
func (f *Flow) discover(ctx context.Context, cfg Config) error {
	issuer := strings.TrimRight(cfg.Issuer, "/")

	callCtx, cancel := f.callContext(ctx)
	defer cancel()
	doc, err := f.fetchDiscovery(callCtx, issuer)
	if err != nil {
		return fmt.Errorf("[directauth New] failed to create OIDC provider: %w", err)
	}

	providerConfig := &oidc.ProviderConfig{
		IssuerURL:     doc.Issuer,
		AuthURL:       doc.AuthURL,
		TokenURL:      doc.TokenURL,
		DeviceAuthURL: doc.DeviceAuthURL,
		UserInfoURL:   doc.UserInfoURL,
		JWKSURL:       doc.JWKSURL,
		Algorithms:    doc.Algorithms,
	}
	f.provider = providerConfig.NewProvider(oidc.ClientContext(context.WithoutCancel(ctx), f.httpClient))
	f.oauth.Endpoint = f.provider.Endpoint()
	f.verifier = f.provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
		Now:      f.nowFunc,
	})
	f.revocationURL = doc.RevocationEndpoint
	f.userInfoURL = doc.UserInfoURL
	f.userInfoOIDC = doc.UserInfoURL != ""
	return nil
}

func (f *Flow) fetchDiscovery(ctx context.Context, issuer string) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+discoveryPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode discovery document: %w", err)
	}
	if doc.Issuer != issuer {
		return nil, fmt.Errorf("issuer did not match the issuer returned by provider, expected %q got %q", issuer, doc.Issuer)
	}
	if doc.TokenURL == "" {
		return nil, fmt.Errorf("discovery document has no token_endpoint")
	}
	return &doc, nil
}
