package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/farmlink/farmhub/internal/config"
	"github.com/farmlink/farmhub/internal/domain/user"
	"github.com/farmlink/farmhub/internal/http/middlewares"
	"github.com/farmlink/farmhub/internal/storage"
	"github.com/gin-gonic/gin"
)

type ProfileStore interface {
	UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error)
	UpdateProfileImage(ctx context.Context, id string, path string) (user.User, error)
}

type PhotoStore interface {
	SaveProfilePhoto(userID, originalName string, r io.Reader) (string, error)
}

type ProfileHandler struct {
	users  ProfileStore
	photos PhotoStore
}

func NewProfileHandler(users ProfileStore, photos PhotoStore) *ProfileHandler {
	return &ProfileHandler{users: users, photos: photos}
}

// UpdateProfileRequest is the whitelist of mutable fields. Absent fields
// stay untouched; name, email, role and the hash are not reachable here.
type UpdateProfileRequest struct {
	Phone    *string `json:"phone"`
	Village  *string `json:"village"`
	LandSize *string `json:"landSize"`
}

func (h *ProfileHandler) GetProfile(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *ProfileHandler) UpdateProfile(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	updated, err := h.users.UpdateProfile(cctx, u.ID, user.ProfileUpdate{
		Phone:    req.Phone,
		Village:  req.Village,
		LandSize: req.LandSize,
	})

	if err != nil {
		RespondInternal(ctx, "Profile update failed")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *ProfileHandler) UploadPhoto(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	header, err := ctx.FormFile("photo")

	if err != nil {
		RespondBadRequest(ctx, "Missing photo file", nil)
		return
	}

	src, err := header.Open()

	if err != nil {
		RespondInternal(ctx, "Photo upload failed")
		return
	}

	defer src.Close()

	path, err := h.photos.SaveProfilePhoto(u.ID, header.Filename, src)

	if err != nil {
		if errors.Is(err, storage.ErrNotImage) {
			RespondError(ctx, http.StatusBadRequest, "not_an_image", "Only images allowed", nil)
			return
		}

		RespondInternal(ctx, "Photo upload failed")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	updated, err := h.users.UpdateProfileImage(cctx, u.ID, path)

	if err != nil {
		RespondInternal(ctx, "Photo upload failed")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}
