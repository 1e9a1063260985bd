package shares

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
)

const (
	testShareBase = "https://aura.xadev.com/share"
	testAppOpen   = "https://aura.xadev.com/open"
	testFallback  = "https://apps.apple.com/app/aura-horoscope/id0000000000"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.ReferralCode{}, &models.ShareEvent{}, &models.ShareClickEvent{}))
	return conn
}

type codeFinder struct {
	conn *gorm.DB
	err  error
}

func (f codeFinder) FindActiveCodeByOwner(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	if f.err != nil {
		return nil, f.err
	}
	var rc models.ReferralCode
	err := f.conn.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rc, err
}

func newTestService(t *testing.T, conn *gorm.DB, finder referralCodeFinder, ids ...string) Service {
	t.Helper()
	params := ServiceParams{
		Repo:          NewRepository(conn),
		ReferralCodes: finder,
		ShareBaseURL:  testShareBase,
		AppOpenURL:    testAppOpen,
		FallbackURL:   testFallback,
	}
	if len(ids) > 0 {
		next := 0
		params.IDGenerator = func() (string, error) {
			id := ids[next%len(ids)]
			next++
			return id, nil
		}
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func TestCreateShareWithReferralCode(t *testing.T) {
	conn := newTestDB(t)
	user := uuid.New()
	require.NoError(t, conn.Create(&models.ReferralCode{Code: "AB3DEFGH", OwnerUserID: user, IsActive: true}).Error)
	svc := newTestService(t, conn, codeFinder{conn: conn}, "AbCd2345")

	link, err := svc.CreateShare(context.Background(), user, CreateShareInput{
		ContentType:   "reading",
		ContentID:     "reading-42",
		SharePlatform: "instagram_story",
		Metadata:      json.RawMessage(`{"sign":"leo"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "AbCd2345", link.DeepLinkID)
	assert.Equal(t, testShareBase+"/AbCd2345", link.ShareURL)

	u, err := url.Parse(link.UTMURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "instagram_story", q.Get("utm_source"))
	assert.Equal(t, "social_share", q.Get("utm_medium"))
	assert.Equal(t, "reading_share", q.Get("utm_campaign"))
	assert.Equal(t, "reading", q.Get("utm_content"))
	assert.Equal(t, "AB3DEFGH", q.Get("ref"))
	assert.Equal(t, link.UTMURL, link.PlatformURL)

	var stored models.ShareEvent
	require.NoError(t, conn.First(&stored, "deep_link_id = ?", "AbCd2345").Error)
	assert.Equal(t, user, stored.UserID)
	assert.Equal(t, "reading_share", stored.UTMCampaign)
	assert.Equal(t, "reading-42", *stored.ContentID)
	require.NotNil(t, stored.ReferralCodeID)
	assert.JSONEq(t, `{"sign":"leo"}`, string(stored.Metadata))
	assert.Zero(t, stored.ClickCount)
}

func TestCreateShareWithoutReferralCode(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, codeFinder{err: errors.New("lookup failed")})

	link, err := svc.CreateShare(context.Background(), uuid.New(), CreateShareInput{
		ContentType:   "profile",
		SharePlatform: "whatsapp",
		UTMCampaign:   "spring",
	})
	require.NoError(t, err)
	assert.True(t, ValidDeepLinkID(link.DeepLinkID))

	u, err := url.Parse(link.UTMURL)
	require.NoError(t, err)
	assert.False(t, u.Query().Has("ref"))
	assert.Equal(t, "spring", u.Query().Get("utm_campaign"))
	assert.Contains(t, link.PlatformURL, "https://wa.me/?text=")

	var stored models.ShareEvent
	require.NoError(t, conn.First(&stored, "deep_link_id = ?", link.DeepLinkID).Error)
	assert.Nil(t, stored.ReferralCodeID)
	assert.Nil(t, stored.ContentID)
	assert.True(t, stored.Metadata.IsNull())
}

func TestCreateShareRetriesDeepLinkCollision(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, codeFinder{conn: conn}, "AbCd2345", "AbCd2345", "Zyxw9876")
	ctx := context.Background()
	input := CreateShareInput{ContentType: "reading", SharePlatform: "twitter"}

	first, err := svc.CreateShare(ctx, uuid.New(), input)
	require.NoError(t, err)
	second, err := svc.CreateShare(ctx, uuid.New(), input)
	require.NoError(t, err)

	assert.Equal(t, "AbCd2345", first.DeepLinkID)
	assert.Equal(t, "Zyxw9876", second.DeepLinkID)
}

func TestCreateShareGivesUpAfterRepeatedCollisions(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, codeFinder{conn: conn}, "AbCd2345")
	ctx := context.Background()
	input := CreateShareInput{ContentType: "reading", SharePlatform: "twitter"}

	_, err := svc.CreateShare(ctx, uuid.New(), input)
	require.NoError(t, err)
	_, err = svc.CreateShare(ctx, uuid.New(), input)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
}

func TestCreateShareValidation(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, codeFinder{conn: conn})

	cases := []struct {
		input   CreateShareInput
		message string
	}{
		{CreateShareInput{SharePlatform: "twitter"}, "content_type and share_platform are required"},
		{CreateShareInput{ContentType: "reading"}, "content_type and share_platform are required"},
		{CreateShareInput{ContentType: "horoscope", SharePlatform: "twitter"}, "Invalid content_type"},
		{CreateShareInput{ContentType: "reading", SharePlatform: "myspace"}, "Invalid share_platform"},
		{CreateShareInput{ContentType: "reading", SharePlatform: "twitter", Metadata: json.RawMessage(`[1,2]`)}, "metadata must be a JSON object"},
	}
	for _, tc := range cases {
		_, err := svc.CreateShare(context.Background(), uuid.New(), tc.input)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "input %+v", tc.input)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		assert.Equal(t, tc.message, typed.Message())
	}

	_, err := svc.CreateShare(context.Background(), uuid.Nil, CreateShareInput{ContentType: "reading", SharePlatform: "twitter"})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	var count int64
	require.NoError(t, conn.Model(&models.ShareEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestResolveClickHit(t *testing.T) {
	conn := newTestDB(t)
	owner := uuid.New()
	require.NoError(t, conn.Create(&models.ReferralCode{Code: "AB3DEFGH", OwnerUserID: owner, IsActive: true}).Error)
	svc := newTestService(t, conn, codeFinder{conn: conn}, "AbCd2345")
	ctx := context.Background()

	_, err := svc.CreateShare(ctx, owner, CreateShareInput{ContentType: "compatibility", ContentID: "match-7", SharePlatform: "imessage"})
	require.NoError(t, err)

	target := svc.ResolveClick(ctx, "AbCd2345", ClickContext{UserAgent: "Mozilla/5.0", Referrer: "https://t.co/x", IPCountry: "SG"})
	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "aura.xadev.com", u.Host)
	assert.Equal(t, "/open", u.Path)
	q := u.Query()
	assert.Equal(t, "imessage", q.Get("utm_source"))
	assert.Equal(t, "compatibility_share", q.Get("utm_campaign"))
	assert.Equal(t, "AbCd2345", q.Get("ref"))
	assert.Equal(t, "compatibility", q.Get("type"))
	assert.Equal(t, "match-7", q.Get("id"))
	assert.Equal(t, "AB3DEFGH", q.Get("referral"))

	svc.ResolveClick(ctx, "AbCd2345", ClickContext{})

	var stored models.ShareEvent
	require.NoError(t, conn.First(&stored, "deep_link_id = ?", "AbCd2345").Error)
	assert.EqualValues(t, 2, stored.ClickCount)

	var clicks []models.ShareClickEvent
	require.NoError(t, conn.Order("created_at").Find(&clicks, "share_event_id = ?", stored.ID).Error)
	require.Len(t, clicks, 2)
	var withDetails, bare int
	for _, c := range clicks {
		if c.UserAgent != nil {
			withDetails++
			assert.Equal(t, "Mozilla/5.0", *c.UserAgent)
			assert.Equal(t, "https://t.co/x", *c.Referrer)
			assert.Equal(t, "SG", *c.IPCountry)
		} else {
			bare++
			assert.Nil(t, c.IPCountry)
		}
	}
	assert.Equal(t, 1, withDetails)
	assert.Equal(t, 1, bare)
}

func TestResolveClickMissFallsBack(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, codeFinder{conn: conn})

	for _, id := range []string{"Zyxw9876", "bad!", ""} {
		assert.Equal(t, testFallback, svc.ResolveClick(context.Background(), id, ClickContext{UserAgent: "curl"}))
	}
	var clicks int64
	require.NoError(t, conn.Model(&models.ShareClickEvent{}).Count(&clicks).Error)
	assert.Zero(t, clicks)
}

func TestResolveClickStoreErrorFallsBack(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, codeFinder{conn: conn})
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.Equal(t, testFallback, svc.ResolveClick(context.Background(), "AbCd2345", ClickContext{}))
}

func TestNewServiceValidatesURLs(t *testing.T) {
	conn := newTestDB(t)
	_, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		ReferralCodes: codeFinder{conn: conn},
		ShareBaseURL:  "/share",
		AppOpenURL:    testAppOpen,
		FallbackURL:   testFallback,
	})
	assert.Error(t, err)
}
