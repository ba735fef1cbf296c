package controller

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"questlog_backend/internal/ledger"
	"questlog_backend/internal/model"
	"questlog_backend/internal/ratelimit"
	"questlog_backend/pkg/entitlement"
	"questlog_backend/pkg/utils/jwt"
)

const downloadURLTTL = 5 * time.Minute

// platform/version → object key, fixed at build time
var releaseObjects = map[string]map[string]string{
	"windows": {
		"latest": "releases/windows/questlog-setup.exe",
		"beta":   "releases/windows/questlog-setup-beta.exe",
	},
	"mac": {
		"latest": "releases/mac/questlog.dmg",
		"beta":   "releases/mac/questlog-beta.dmg",
	},
	"linux": {
		"latest": "releases/linux/questlog.AppImage",
		"beta":   "releases/linux/questlog-beta.AppImage",
	},
}

// Heuristic abuse filter, not a security boundary.
var automatedUserAgent = regexp.MustCompile(`(?i)(curl|wget|python-requests|go-http-client|httpclient|java/|bot|spider|crawl|scrapy)`)

// StorageClient is the object-storage surface the gate needs.
type StorageClient interface {
	Exists(ctx context.Context, key string) (bool, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type DownloadController struct {
	store      *ledger.Store
	limiter    *ratelimit.Limiter
	storage    StorageClient
	csrfSecret []byte
}

func NewDownloadController(store *ledger.Store, limiter *ratelimit.Limiter, storage StorageClient, csrfSecret string) *DownloadController {
	return &DownloadController{
		store:      store,
		limiter:    limiter,
		storage:    storage,
		csrfSecret: []byte(csrfSecret),
	}
}

func (d *DownloadController) signCSRF(nonce string) string {
	mac := hmac.New(sha256.New, d.csrfSecret)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *DownloadController) validCSRF(token string) bool {
	nonce, signature, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(d.signCSRF(nonce)), []byte(signature))
}

// GetCSRFToken hands the download page a token to echo back on the actual
// download request.
func (d *DownloadController) GetCSRFToken(c *fiber.Ctx) error {
	nonce := uuid.NewString()
	return respondOK(c, fiber.Map{
		"csrf_token": nonce + "." + d.signCSRF(nonce),
	})
}

// Download runs the gate checks in a fixed order: CSRF, auth, entitlement,
// rate limits, input validation, user-agent filter, then presign + redirect.
func (d *DownloadController) Download(c *fiber.Ctx) error {
	// A token is only present when the request came from the download page;
	// direct API calls skip it and that is allowed.
	if token := c.Query("csrf_token"); token != "" && !d.validCSRF(token) {
		return respondError(c, fiber.StatusForbidden, "Invalid CSRF token")
	}

	header := c.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return respondError(c, fiber.StatusUnauthorized, "Missing or invalid authorization header")
	}
	claims, err := jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	user, err := d.store.UserByID(claims.UserID)
	if err != nil {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	if !entitlement.CanDownload(entitlement.Status(user.SubscriptionStatus)) {
		return respondError(c, fiber.StatusForbidden, "An active subscription is required to download")
	}

	if result := d.limiter.Check(user.ID); !result.Allowed {
		return respondError(c, fiber.StatusTooManyRequests, result.Reason)
	}

	platform := c.Query("platform")
	versions, ok := releaseObjects[platform]
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Unsupported platform")
	}
	version := c.Params("version")
	key, ok := versions[version]
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Invalid version")
	}

	userAgent := c.Get("User-Agent")
	if userAgent == "" || automatedUserAgent.MatchString(userAgent) {
		return respondError(c, fiber.StatusForbidden, "Automated downloads are not allowed")
	}

	exists, err := d.storage.Exists(c.Context(), key)
	if err != nil {
		log.Printf("Could not check release object %s: %v", key, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not prepare download")
	}
	if !exists {
		return respondError(c, fiber.StatusNotFound, "Download not found")
	}

	url, err := d.storage.Presign(c.Context(), key, downloadURLTTL)
	if err != nil {
		log.Printf("Could not presign release object %s: %v", key, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not prepare download")
	}

	// Ledger row for rate limiting. Failure to write must not block the
	// download; it only widens the limiter by one.
	attempt := &model.DownloadAttempt{
		PublicID:  uuid.NewString(),
		UserID:    user.ID,
		Platform:  platform,
		Version:   version,
		Status:    model.DownloadInProgress,
		IP:        c.IP(),
		UserAgent: userAgent,
	}
	if err := d.store.RecordDownloadAttempt(attempt); err != nil {
		log.Printf("Could not record download attempt for user %d: %v", user.ID, err)
	} else {
		d.scheduleCompletion(attempt.PublicID)
	}

	return c.Redirect(url, fiber.StatusFound)
}

// scheduleCompletion marks the attempt completed when the presigned URL
// expires; the actual transfer happens directly against object storage, so
// URL expiry is the closest observable end of the download. Best-effort: a
// process restart loses the timer and the row ages out of the window.
func (d *DownloadController) scheduleCompletion(publicID string) {
	time.AfterFunc(downloadURLTTL, func() {
		if err := d.store.CompleteDownloadAttempt(publicID); err != nil {
			log.Printf("Could not complete download attempt %s: %v", publicID, err)
		}
	})
}
