package shares

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
)

const (
	// DeepLinkAlphabet leaves out look-alike characters (0 O o 1 I i l).
	DeepLinkAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
	DeepLinkLength   = 8

	utmMedium = "social_share"
)

var deepLinkPattern = regexp.MustCompile(`^[A-HJ-NP-Za-hjkmnp-z2-9]{8}$`)

// GenerateDeepLinkID draws DeepLinkLength characters from DeepLinkAlphabet.
func GenerateDeepLinkID() (string, error) {
	max := big.NewInt(int64(len(DeepLinkAlphabet)))
	var b strings.Builder
	b.Grow(DeepLinkLength)
	for i := 0; i < DeepLinkLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		b.WriteByte(DeepLinkAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidDeepLinkID reports whether id could have been minted by
// GenerateDeepLinkID.
func ValidDeepLinkID(id string) bool {
	return deepLinkPattern.MatchString(id)
}

// DefaultCampaign is used when the client sends no utm_campaign.
func DefaultCampaign(contentType enums.ShareContentType) string {
	return string(contentType) + "_share"
}

func utmValues(platform enums.SharePlatform, contentType enums.ShareContentType, campaign string) url.Values {
	if strings.TrimSpace(campaign) == "" {
		campaign = DefaultCampaign(contentType)
	}
	return url.Values{
		"utm_source":   {string(platform)},
		"utm_medium":   {utmMedium},
		"utm_campaign": {campaign},
		"utm_content":  {string(contentType)},
	}
}

// BuildUTMURL tags base with the share's UTM parameters plus any non-empty
// extras. Other query keys on base are kept; the four utm_* keys and any
// extra keys replace values base already carries.
func BuildUTMURL(base string, platform enums.SharePlatform, contentType enums.ShareContentType, campaign string, extra url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	for key, values := range utmValues(platform, contentType, campaign) {
		q[key] = values
	}
	for key, values := range extra {
		if len(values) > 0 && values[0] != "" {
			q[key] = values
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ShareURL is the canonical public link for a deep link id.
func ShareURL(base, deepLinkID string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(deepLinkID)
}

// PlatformURL wraps the link for platforms that open through their own
// intent URL.
func PlatformURL(link string, platform enums.SharePlatform) string {
	switch platform {
	case enums.SharePlatformWhatsApp:
		return "https://wa.me/?text=" + url.QueryEscape(link)
	default:
		return link
	}
}
