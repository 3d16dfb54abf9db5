package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/mesa-go/internal/domain"
	"github.com/kirinyoku/mesa-go/internal/kitchen"
	redisrepo "github.com/kirinyoku/mesa-go/internal/repository/redis"
	"github.com/kirinyoku/mesa-go/internal/service"
	kitchensvc "github.com/kirinyoku/mesa-go/internal/service/kitchen"
	"github.com/kirinyoku/mesa-go/internal/service/orders"
	"github.com/kirinyoku/mesa-go/internal/service/query"
	"github.com/kirinyoku/mesa-go/internal/session"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// catalog
	r.GET("/catalog", handleGetCatalog(svcs))
	r.POST("/catalog/refresh", handleRefreshCatalog(svcs))

	// customer/table session
	r.POST("/orders/:key/open", handleOpenOrder(svcs))
	r.POST("/orders/:key/draft", handleDraftMutation(svcs))
	r.POST("/orders/:key/submit", handleSubmitDraft(svcs, idem))
	r.POST("/orders/:key/status", handleTransition(svcs))
	r.POST("/orders/:key/archive", handleArchive(svcs))
	r.GET("/orders/lookup/:id", handleLookupOrder(svcs))

	// session room
	r.GET("/rooms/:key/snapshot", handleGetSnapshot(svcs))
	r.GET("/rooms/:key/events", handleRoomEvents(svcs))

	// kitchen stations
	r.GET("/kitchen/:key/queue", handleKitchenQueue(svcs))
	r.POST("/kitchen/:key/start", handleMarkStarted(svcs))
	r.POST("/kitchen/:key/items", handleMarkItemStatus(svcs))

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get menu catalog
// @Success  200  {array}  domain.MenuItem
// @Router   /catalog [get]
func handleGetCatalog(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svcs.Query.Menu(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, items, "public, max-age=60", true)
	}
}

// @Summary  Invalidate and reload the menu catalog
// @Success  200  {array}  domain.MenuItem
// @Router   /catalog/refresh [post]
func handleRefreshCatalog(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svcs.Query.RefreshCatalog(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// @Summary  Open (or resume) the live order for a table/customer
// @Param    key  path  string  true  "Room key (table number or online order id)"
// @Param    req  body  OpenOrderRequest  true  "payload"
// @Success  200  {object}  domain.Snapshot
// @Router   /orders/{key}/open [post]
func handleOpenOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OpenOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if (req.TableNumber == nil) == (req.CustomerID == nil) {
			badRequest(c, "exactly one of table_number or customer_id is required")
			return
		}

		snap, err := svcs.Orders.Open(c.Request.Context(), c.Param("key"), domain.OwnerRef{
			TableNumber: req.TableNumber,
			CustomerID:  req.CustomerID,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// @Summary  Apply one draft mutation (quantity/variant/toppings)
// @Param    key  path  string  true  "Room key"
// @Param    req  body  DraftMutationRequest  true  "payload"
// @Success  200  {object}  domain.Snapshot
// @Failure  422  {object}  ErrorResponse  "unknown menu reference"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /orders/{key}/draft [post]
func handleDraftMutation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DraftMutationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		rlKey := "ip:" + c.ClientIP()
		snap, err := svcs.Orders.ApplyDraftMutation(c.Request.Context(), c.Param("key"), session.DraftDelta{
			MenuItemID: req.MenuItemID,
			Quantity:   req.Quantity,
			VariantID:  req.VariantID,
			ToppingIDs: req.ToppingIDs,
		}, rlKey)
		if err != nil {
			if errors.Is(err, orders.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: err.Error()})
				return
			}
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// @Summary  Submit the current draft (idempotent)
// @Param    key  path  string  true  "Room key"
// @Param    req  body  SubmitDraftRequest  true  "payload"
// @Header   201  {string}  Idempotency-Key  "echo"
// @Success  201  {object}  SubmitDraftResponse
// @Failure  400  {object}  ErrorResponse  "empty submission"
// @Failure  409  {object}  ErrorResponse  "wrong state / idem in progress"
// @Router   /orders/{key}/submit [post]
func handleSubmitDraft(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomKey := c.Param("key")

		var req SubmitDraftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemSubmit(roomKey, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		snap, groupID, err := svcs.Orders.SubmitDraft(c.Request.Context(), roomKey, req.Addition)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := SubmitDraftResponse{GroupID: groupID, Snapshot: snap}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Transition order status (staff accept/reject, rollback)
// @Param    key  path  string  true  "Room key"
// @Param    req  body  TransitionRequest  true  "payload"
// @Success  200  {object}  domain.Snapshot
// @Failure  409  {object}  ErrorResponse  "invalid transition"
// @Router   /orders/{key}/status [post]
func handleTransition(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		snap, err := svcs.Orders.TransitionStatus(c.Request.Context(), c.Param("key"), req.To, req.Actor, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// @Summary  Archive a completed order and release the table
// @Param    key  path  string  true  "Room key"
// @Success  204
// @Router   /orders/{key}/archive [post]
func handleArchive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svcs.Orders.Archive(c.Request.Context(), c.Param("key")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Look an order up by id (works after archive)
// @Param    id  path  string  true  "Order id (uuid)"
// @Success  200  {object}  OrderLookupResponse
// @Router   /orders/lookup/{id} [get]
func handleLookupOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid order id")
			return
		}

		o, roomKey, err := svcs.Query.Order(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, OrderLookupResponse{Order: *o, RoomKey: roomKey})
	}
}

// @Summary  Get the current full snapshot of one order
// @Param    key  path  string  true  "Room key"
// @Success  200  {object}  domain.Snapshot
// @Router   /rooms/{key}/snapshot [get]
func handleGetSnapshot(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svcs.Query.Snapshot(c.Request.Context(), c.Param("key"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// @Summary  Kitchen station queue for one area
// @Param    key   path   string  true  "Room key"
// @Param    area  query  string  true  "Kitchen area tag"
// @Success  200  {array}  kitchen.QueueItem
// @Router   /kitchen/{key}/queue [get]
func handleKitchenQueue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		area := domain.KitchenArea(c.Query("area"))
		if area == "" {
			badRequest(c, "area is required")
			return
		}

		queue, err := svcs.Kitchen.Queue(c.Request.Context(), c.Param("key"), area)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, queue)
	}
}

// @Summary  Mark an item as being prepared
// @Param    key  path  string  true  "Room key"
// @Param    req  body  ItemStartRequest  true  "payload"
// @Success  200  {object}  domain.Snapshot
// @Router   /kitchen/{key}/start [post]
func handleMarkStarted(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ItemStartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		snap, err := svcs.Kitchen.MarkStarted(c.Request.Context(), c.Param("key"), kitchen.ItemRef{
			BatchID:    req.BatchID,
			MenuItemID: req.MenuItemID,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// @Summary  Promote an item's status (idempotent)
// @Param    key  path  string  true  "Room key"
// @Param    req  body  ItemStatusRequest  true  "payload"
// @Success  200  {object}  domain.Snapshot
// @Failure  409  {object}  ErrorResponse  "backward item transition"
// @Router   /kitchen/{key}/items [post]
func handleMarkItemStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ItemStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		snap, err := svcs.Kitchen.MarkItemStatus(c.Request.Context(), c.Param("key"), kitchen.ItemRef{
			BatchID:    req.BatchID,
			MenuItemID: req.MenuItemID,
		}, req.Status)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// --- Helpers ---

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// orders service
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	case errors.Is(err, orders.ErrInvalidReference):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid menu reference"})
		return
	case errors.Is(err, orders.ErrEmptySubmission):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "nothing selected to submit"})
		return
	case errors.Is(err, orders.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid status transition"})
		return
	case errors.Is(err, orders.ErrDraftLocked):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "draft locked while awaiting confirmation"})
		return
	case errors.Is(err, orders.ErrConflictingSubmission):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "submission does not match order state"})
		return
	case errors.Is(err, orders.ErrOrderArchived):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order is archived"})
		return
	// kitchen service
	case errors.Is(err, kitchensvc.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	case errors.Is(err, kitchensvc.ErrItemNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "item not found"})
		return
	case errors.Is(err, kitchensvc.ErrInvalidItemTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid item status transition"})
		return
	case errors.Is(err, kitchensvc.ErrOrderNotProcessing):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order not in preparation"})
		return
	case errors.Is(err, kitchensvc.ErrOrderArchived):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order is archived"})
		return
	// query service
	case errors.Is(err, query.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
