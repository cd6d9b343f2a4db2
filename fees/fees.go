package fees

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const serviceTypeCompute = "compute"

// DdoRetriever resolves stored documents by DID.
type DdoRetriever interface {
	GetDdo(ctx context.Context, id string) (*store.DdoRecord, error)
}

// Error is a fee request failure rendered as `{httpStatus, error}`.
type Error struct {
	HttpStatus int    `json:"httpStatus"`
	Message    string `json:"error"`
}

func (e *Error) Error() string {
	return e.Message
}

func newError(status int, format string, args ...interface{}) *Error {
	return &Error{HttpStatus: status, Message: fmt.Sprintf(format, args...)}
}

// ProviderFee is a signed quote authorizing service consumption until ValidUntil.
type ProviderFee struct {
	ProviderFeeAddress string `json:"providerFeeAddress"`
	ProviderFeeToken   string `json:"providerFeeToken"`
	ProviderFeeAmount  string `json:"providerFeeAmount"`
	ProviderData       string `json:"providerData"`
	V                  uint8  `json:"v"`
	R                  string `json:"r"`
	S                  string `json:"s"`
	ValidUntil         int64  `json:"validUntil"`
}

// Service is the part of a document service the fee quote depends on.
type Service struct {
	Id               string `json:"id"`
	Type             string `json:"type"`
	Timeout          int64  `json:"timeout"`
	DatatokenAddress string `json:"datatokenAddress"`
}

type providerData struct {
	Environment *string `json:"environment"`
	Timestamp   int64   `json:"timestamp"`
	Dt          string  `json:"dt"`
	Id          string  `json:"id"`
}

type Config struct {
	// Fee token, zero address means native token
	Token string `default:"0x0000000000000000000000000000000000000000"`
	// Fee amount in decimal or 0x hex
	Amount string `default:"0"`
}

// Handler computes provider fee quotes for stored documents.
type Handler struct {
	retriever DdoRetriever
	signer    *signer.Signer
	token     common.Address
	amount    *big.Int
	logger    logrus.FieldLogger

	now func() time.Time
}

// MustNewHandlerFromViper creates a fee handler configured by `fees.*`.
func MustNewHandlerFromViper(retriever DdoRetriever, s *signer.Signer, logger logrus.FieldLogger) *Handler {
	var conf Config
	viper.MustUnmarshalKey("fees", &conf)

	h, err := NewHandler(conf, retriever, s, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create fees handler")
	}

	return h
}

func NewHandler(conf Config, retriever DdoRetriever, s *signer.Signer, logger logrus.FieldLogger) (*Handler, error) {
	if !common.IsHexAddress(conf.Token) {
		return nil, errors.Errorf("invalid fee token %q", conf.Token)
	}

	amount, ok := math.ParseBig256(conf.Amount)
	if !ok {
		return nil, errors.Errorf("invalid fee amount %q", conf.Amount)
	}

	return &Handler{
		retriever: retriever,
		signer:    s,
		token:     common.HexToAddress(conf.Token),
		amount:    amount,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// GetFees returns the signed provider fee of a document service. Zero validUntil
// means the service default, which is now + service timeout, or 0 if the service
// never times out. Any failure is returned as *Error.
func (h *Handler) GetFees(ctx context.Context, ddoId, serviceId string, validUntil int64) (*ProviderFee, error) {
	logger := h.logger.WithFields(logrus.Fields{"ddoId": ddoId, "serviceId": serviceId})
	logger.Debug("Calculating provider fees")

	service, err := h.resolveService(ctx, ddoId, serviceId)
	if err != nil {
		logger.WithError(err).Info("Failed to resolve service for fees")
		return nil, err
	}

	until, err := h.validUntil(service, validUntil)
	if err != nil {
		logger.WithError(err).Info("Invalid fee validity")
		return nil, err
	}

	fee, err := h.createProviderFee(service, until)
	if err != nil {
		logger.WithError(err).Error("Failed to create provider fee")
		return nil, newError(
			http.StatusInternalServerError,
			"Unable to calculate fees for DDO with id: %v and serviceId: %v", ddoId, serviceId,
		)
	}

	return fee, nil
}

func (h *Handler) resolveService(ctx context.Context, ddoId, serviceId string) (*Service, error) {
	if len(ddoId) == 0 {
		return nil, newError(http.StatusBadRequest, "Missing ddo id")
	}

	if len(serviceId) == 0 {
		return nil, newError(http.StatusBadRequest, "Missing service id")
	}

	// malformed identifiers never resolve
	if !ddo.IsDid(ddoId) {
		return nil, newError(http.StatusNotFound, "Cannot resolve DID")
	}

	record, err := h.retriever.GetDdo(ctx, ddoId)
	if store.IsRecordNotFound(err) {
		return nil, newError(http.StatusNotFound, "Cannot resolve DID")
	}

	if err != nil {
		h.logger.WithError(err).WithField("ddoId", ddoId).Error("Failed to retrieve ddo")
		return nil, newError(http.StatusInternalServerError, "Cannot resolve DID")
	}

	var doc struct {
		Services []Service `json:"services"`
	}

	if err := json.Unmarshal(record.Document, &doc); err != nil {
		return nil, newError(http.StatusInternalServerError, "Malformed DDO: %v", err)
	}

	for i := range doc.Services {
		if doc.Services[i].Id != serviceId {
			continue
		}

		if doc.Services[i].Type == serviceTypeCompute {
			return nil, newError(
				http.StatusBadRequest, "Use the initializeCompute endpoint to initialize compute jobs",
			)
		}

		return &doc.Services[i], nil
	}

	return nil, newError(http.StatusBadRequest, "Invalid serviceId")
}

func (h *Handler) validUntil(service *Service, requested int64) (int64, error) {
	var until int64
	if service.Timeout > 0 {
		until = h.now().Unix() + service.Timeout
	}

	if requested == 0 {
		return until, nil
	}

	if service.Timeout > 0 && requested > until {
		return 0, newError(http.StatusBadRequest, "Required validUntil is higher than service timeout")
	}

	return requested, nil
}

func (h *Handler) createProviderFee(service *Service, validUntil int64) (*ProviderFee, error) {
	feeAddress, ok := h.signer.Address()
	if !ok {
		return nil, signer.ErrKeyUnavailable
	}

	data, err := json.Marshal(providerData{
		Timestamp: h.now().Unix(),
		Dt:        service.DatatokenAddress,
		Id:        service.Id,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to marshal provider data")
	}

	msgHash := FeeMessageHash(data, feeAddress, h.token, h.amount, validUntil)

	sig, err := h.signer.SignMessage(msgHash.Bytes())
	if err != nil {
		return nil, err
	}

	return &ProviderFee{
		ProviderFeeAddress: feeAddress.Hex(),
		ProviderFeeToken:   h.token.Hex(),
		ProviderFeeAmount:  h.amount.String(),
		ProviderData:       hexutil.Encode(data),
		V:                  sig[crypto.RecoveryIDOffset],
		R:                  hexutil.Encode(sig[:32]),
		S:                  hexutil.Encode(sig[32:64]),
		ValidUntil:         validUntil,
	}, nil
}

// FeeMessageHash returns the keccak256 of the tightly packed
// (bytes providerData, address feeAddress, address token, uint256 amount, uint256 validUntil).
func FeeMessageHash(
	providerData []byte, feeAddress, token common.Address, amount *big.Int, validUntil int64,
) common.Hash {
	return crypto.Keccak256Hash(
		providerData,
		feeAddress.Bytes(),
		token.Bytes(),
		math.U256Bytes(new(big.Int).Set(amount)),
		math.U256Bytes(big.NewInt(validUntil)),
	)
}
