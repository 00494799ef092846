package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/pkg/dto"
)

type IdentityHandler struct {
	store    IdentityStore
	objects  ObjectStore
	enroller Enroller
}

func NewIdentityHandler(store IdentityStore, objects ObjectStore, enroller Enroller) *IdentityHandler {
	return &IdentityHandler{store: store, objects: objects, enroller: enroller}
}

// Register enrolls a new identity from multipart profile fields and one or
// more images.
func (h *IdentityHandler) Register(c *gin.Context) {
	profile := models.Profile{
		Name:       strings.TrimSpace(c.PostForm("name")),
		StudentID:  strings.TrimSpace(c.PostForm("student_id")),
		Class:      strings.TrimSpace(c.PostForm("class")),
		Department: strings.TrimSpace(c.PostForm("department")),
		Room:       strings.TrimSpace(c.PostForm("room")),
	}
	if err := profile.Validate(); err != nil {
		abortWithError(c, err)
		return
	}

	images, err := enrollImages(c)
	if err != nil {
		if errors.Is(err, errNoImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing required field: image file"})
			return
		}
		abortWithError(c, err)
		return
	}

	identity, err := h.enroller.Enroll(c.Request.Context(), profile, images)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterResponse{
		Message: "User registered successfully",
		Data:    userResponse(identity, true),
	})
}

// List returns every identity, optionally filtered by one profile attribute
// given as a query parameter (?room=101).
func (h *IdentityHandler) List(c *gin.Context) {
	var filter models.AttributeFilter
	for _, key := range models.FilterableAttributes {
		if v, ok := c.GetQuery(key); ok {
			filter = models.AttributeFilter{Key: key, Value: v}
			break
		}
	}

	identities, err := h.store.ListIdentities(c.Request.Context(), filter)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}

	resp := make([]dto.UserResponse, 0, len(identities))
	for i := range identities {
		resp = append(resp, userResponse(&identities[i], false))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *IdentityHandler) GetByStudentID(c *gin.Context) {
	identity, err := h.store.GetIdentityByAttribute(c.Request.Context(), "student_id", c.Param("studentId"))
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	if identity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, userResponse(identity, true))
}

func (h *IdentityHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	identity, err := h.store.GetIdentity(c.Request.Context(), id)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	if identity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, userResponse(identity, true))
}

// Delete removes the identity, then its stored images. Image removal
// failures are logged and reflected in deleted_images only.
func (h *IdentityHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	refs, err := h.store.DeleteIdentity(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortWithStoreError(c, err)
		return
	}

	deleted := 0
	if h.objects != nil && len(refs) > 0 {
		deleted, err = h.objects.RemoveObjects(c.Request.Context(), refs)
		if err != nil {
			slog.Warn("delete identity images", "identity", id, "error", err)
		}
	}

	c.JSON(http.StatusOK, dto.DeleteUserResponse{
		Message:       "User deleted successfully",
		UserID:        id,
		DeletedImages: deleted,
		TotalImages:   len(refs),
	})
}

// AddFace appends one face from the "image" upload to an identity.
func (h *IdentityHandler) AddFace(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	img, err := probeImage(c)
	if err != nil {
		if errors.Is(err, errNoImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
			return
		}
		abortWithError(c, err)
		return
	}

	face, err := h.enroller.AddFace(c.Request.Context(), id, img)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, faceResponse(face))
}

// BackfillTimestamps stores default timestamps on identities that lack them.
func (h *IdentityHandler) BackfillTimestamps(c *gin.Context) {
	n, err := h.store.BackfillTimestamps(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Migration failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.BackfillResponse{
		Message:      "Migration completed.",
		UpdatedCount: n,
	})
}
