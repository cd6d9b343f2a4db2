package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/fees"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/sync/monitor"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const routePrefix = "/api/services"

// ScanStatus provides the networks being scanned and their health.
type ScanStatus interface {
	Networks() []uint64
	Health() map[uint64]monitor.HealthState
}

// ErrorResponse is the body of any failed request.
type ErrorResponse struct {
	HttpStatus int    `json:"httpStatus"`
	Error      string `json:"error"`
}

type ValidateRequest struct {
	Ddo        json.RawMessage `json:"ddo"`
	ChainId    uint64          `json:"chainId"`
	NftAddress string          `json:"nftAddress"`
}

type ValidateResponse struct {
	Conforms  bool               `json:"conforms"`
	Errors    map[string]string  `json:"errors"`
	Signature *types.Attestation `json:"signature,omitempty"`
}

type NetworkStatus struct {
	NetworkId            uint64              `json:"networkId"`
	LastProcessedBlock   int64               `json:"lastProcessedBlock"`
	DeploymentStartBlock uint64              `json:"deploymentStartBlock"`
	Health               monitor.HealthState `json:"health,omitempty"`
}

type StatusResponse struct {
	Address  string          `json:"address"`
	Networks []NetworkStatus `json:"networks"`
}

// Api serves document validation, provider fees and node status.
type Api struct {
	validator   *ddo.Validator
	signer      *signer.Signer
	fees        *fees.Handler
	checkpoints store.CheckpointStore
	scan        ScanStatus // nil if not scanning
	logger      logrus.FieldLogger
}

func NewApi(
	validator *ddo.Validator,
	s *signer.Signer,
	feesHandler *fees.Handler,
	checkpoints store.CheckpointStore,
	scan ScanStatus,
	logger logrus.FieldLogger,
) *Api {
	return &Api{
		validator:   validator,
		signer:      s,
		fees:        feesHandler,
		checkpoints: checkpoints,
		scan:        scan,
		logger:      logger,
	}
}

// Handler returns the gin engine with all routes registered.
func (api *Api) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), api.metricsMiddleware)

	group := engine.Group(routePrefix)
	group.POST("/validateDDO", api.validateDdo)
	group.GET("/fees", api.getFees)
	group.GET("/status", api.status)

	return engine
}

func (api *Api) metricsMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if len(route) == 0 {
		route = "unknown"
	}

	metrics.Registry.Api.UpdateDuration(route, c.Writer.Status(), start)

	api.logger.WithFields(logrus.Fields{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"elapsed": time.Since(start),
	}).Debug("HTTP request served")
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{HttpStatus: status, Error: message})
}

func (api *Api) validateDdo(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if len(req.Ddo) == 0 || bytes.Equal(req.Ddo, []byte("null")) {
		abortWithError(c, http.StatusBadRequest, "Missing ddo")
		return
	}

	// unknown schema version or malformed document
	report, err := api.validator.ValidateJSON(c.Request.Context(), req.Ddo, req.ChainId, req.NftAddress)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	resp := ValidateResponse{Conforms: report.Conforms, Errors: report.Errors}
	if report.Conforms {
		attestation := api.signer.AttestJSON(req.Ddo)
		resp.Signature = &attestation
	}

	c.JSON(http.StatusOK, resp)
}

func (api *Api) getFees(c *gin.Context) {
	// non-numeric validUntil falls back to the service default
	validUntil, _ := strconv.ParseInt(c.Query("validUntil"), 10, 64)

	fee, err := api.fees.GetFees(c.Request.Context(), c.Query("ddoId"), c.Query("serviceId"), validUntil)
	if err != nil {
		var feeErr *fees.Error
		if errors.As(err, &feeErr) {
			abortWithError(c, feeErr.HttpStatus, feeErr.Message)
		} else {
			abortWithError(c, http.StatusInternalServerError, err.Error())
		}

		return
	}

	c.JSON(http.StatusOK, fee)
}

func (api *Api) status(c *gin.Context) {
	resp := StatusResponse{Networks: []NetworkStatus{}}
	if addr, ok := api.signer.Address(); ok {
		resp.Address = addr.Hex()
	}

	if api.scan != nil {
		networks, err := api.networkStatus(c.Request.Context())
		if err != nil {
			api.logger.WithError(err).Error("Failed to load network checkpoints")
			abortWithError(c, http.StatusInternalServerError, "Failed to load network checkpoints")
			return
		}

		resp.Networks = networks
	}

	c.JSON(http.StatusOK, resp)
}

func (api *Api) networkStatus(ctx context.Context) ([]NetworkStatus, error) {
	health := api.scan.Health()

	networks := make([]NetworkStatus, 0, len(health))
	for _, id := range api.scan.Networks() {
		status := NetworkStatus{NetworkId: id, LastProcessedBlock: -1, Health: health[id]}

		cp, err := api.checkpoints.LoadCheckpoint(ctx, id)
		if err != nil && !store.IsRecordNotFound(err) {
			return nil, errors.WithMessagef(err, "network %v", id)
		}

		if err == nil {
			status.LastProcessedBlock = cp.LastProcessedBlock
			status.DeploymentStartBlock = cp.DeploymentStartBlock
		}

		networks = append(networks, status)
	}

	return networks, nil
}
