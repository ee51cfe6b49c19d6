// internal/stellar/asset.go
package stellar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

// NativeAssetCode is the network's native lumen asset.
const NativeAssetCode = "XLM"

var assetCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,12}$`)

// Asset identifies what is being paid: the native asset, a bare issued-asset
// code whose issuer the ledger resolves, or an explicit CODE:ISSUER pair.
type Asset struct {
	Code   string
	Issuer string // Empty for the native asset or a ledger-resolved issuer
}

// IsNative reports whether a is the network's native asset.
func (a Asset) IsNative() bool {
	return a.Code == NativeAssetCode && a.Issuer == ""
}

// String renders the asset in its wire form: bare code, or CODE:ISSUER.
func (a Asset) String() string {
	if a.Issuer == "" {
		return a.Code
	}
	return a.Code + ":" + a.Issuer
}

// ParseAsset resolves "XLM" to the native asset, a bare code to an issued
// asset, or a "CODE:ISSUER" pair. An explicit issuer must be a well-formed
// account id.
func ParseAsset(s string) (Asset, error) {
	code, issuer, found := strings.Cut(s, ":")
	if !assetCodePattern.MatchString(code) {
		return Asset{}, fmt.Errorf("asset code %q is malformed: %w", code, util.ErrInvalidAsset)
	}
	if !found {
		return Asset{Code: code}, nil
	}
	if code == NativeAssetCode {
		return Asset{}, fmt.Errorf("the native asset %s has no issuer: %w", NativeAssetCode, util.ErrInvalidAsset)
	}
	if !IsValidAccountID(issuer) {
		return Asset{}, fmt.Errorf("asset issuer %q is not a valid account id: %w", issuer, util.ErrInvalidAsset)
	}
	return Asset{Code: code, Issuer: issuer}, nil
}
