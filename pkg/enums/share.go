package enums

import "fmt"

// ShareContentType identifies what kind of in-app content was shared.
type ShareContentType string

const (
	ShareContentReading        ShareContentType = "reading"
	ShareContentMBTIResult     ShareContentType = "mbti_result"
	ShareContentWeeklyForecast ShareContentType = "weekly_forecast"
	ShareContentCompatibility  ShareContentType = "compatibility"
	ShareContentProfile        ShareContentType = "profile"
)

var validShareContentTypes = []ShareContentType{
	ShareContentReading,
	ShareContentMBTIResult,
	ShareContentWeeklyForecast,
	ShareContentCompatibility,
	ShareContentProfile,
}

func (c ShareContentType) String() string {
	return string(c)
}

func (c ShareContentType) IsValid() bool {
	for _, candidate := range validShareContentTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseShareContentType(value string) (ShareContentType, error) {
	for _, candidate := range validShareContentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid content type %q", value)
}

// SharePlatform is the destination the user shared to.
type SharePlatform string

const (
	SharePlatformIMessage       SharePlatform = "imessage"
	SharePlatformInstagram      SharePlatform = "instagram"
	SharePlatformInstagramStory SharePlatform = "instagram_story"
	SharePlatformTwitter        SharePlatform = "twitter"
	SharePlatformFacebook       SharePlatform = "facebook"
	SharePlatformWhatsApp       SharePlatform = "whatsapp"
	SharePlatformTelegram       SharePlatform = "telegram"
	SharePlatformSnapchat       SharePlatform = "snapchat"
	SharePlatformTikTok         SharePlatform = "tiktok"
	SharePlatformEmail          SharePlatform = "email"
	SharePlatformCopyLink       SharePlatform = "copy_link"
	SharePlatformOther          SharePlatform = "other"
)

var validSharePlatforms = []SharePlatform{
	SharePlatformIMessage,
	SharePlatformInstagram,
	SharePlatformInstagramStory,
	SharePlatformTwitter,
	SharePlatformFacebook,
	SharePlatformWhatsApp,
	SharePlatformTelegram,
	SharePlatformSnapchat,
	SharePlatformTikTok,
	SharePlatformEmail,
	SharePlatformCopyLink,
	SharePlatformOther,
}

func (p SharePlatform) String() string {
	return string(p)
}

func (p SharePlatform) IsValid() bool {
	for _, candidate := range validSharePlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParseSharePlatform(value string) (SharePlatform, error) {
	for _, candidate := range validSharePlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid share platform %q", value)
}
