package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/apperr"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/richardliu001/funding-ledger/internal/money"
	"github.com/richardliu001/funding-ledger/internal/service"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func RegisterHandlers(r *gin.Engine, svc *service.LedgerService) {
	v1 := r.Group("/v1")
	{
		v1.POST("/targets", createTargetHandler(svc))
		v1.GET("/targets", listTargetsHandler(svc))
		v1.GET("/targets/:id", targetSummaryHandler(svc))
		v1.POST("/targets/:id/beneficiaries", assignHandler(svc))
		v1.GET("/targets/:id/beneficiaries", listAssignmentsHandler(svc))
		v1.POST("/targets/:id/collection/open", openCollectionHandler(svc))
		v1.GET("/targets/:id/contributions", targetContributionsHandler(svc))
		v1.POST("/contributions", recordContributionHandler(svc))
		v1.POST("/beneficiaries", registerBeneficiaryHandler(svc))
		v1.GET("/beneficiaries/:id/contributions", beneficiaryContributionsHandler(svc))
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindFailedPrecondition:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	c.JSON(statusOf(kind), errorBody{Error: string(kind), Message: apperr.Message(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: msg})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func parseAmount(c *gin.Context, field, s string) (money.Money, bool) {
	m, err := money.ParseExact(s)
	if errors.Is(err, money.ErrTooPrecise) {
		writeError(c, apperr.FailedPrecondition("%s has more than two decimal places", field))
		return money.Zero, false
	}
	if err != nil {
		badRequest(c, "invalid "+field)
		return money.Zero, false
	}
	return m, true
}

type targetResp struct {
	ID                uuid.UUID    `json:"id"`
	Description       string       `json:"description"`
	Summary           string       `json:"summary"`
	DueDate           string       `json:"due_date"`
	EstimatedValue    money.Money  `json:"estimated_value"`
	CreatedAt         time.Time    `json:"created_at"`
	BeneficiaryCount  int          `json:"beneficiary_count"`
	FeePerBeneficiary *money.Money `json:"fee_per_beneficiary"`
	FeeFrozenAt       *time.Time   `json:"fee_frozen_at"`
}

func toTargetResp(s service.TargetSummary) targetResp {
	return targetResp{
		ID:                s.Target.ID,
		Description:       s.Target.Description,
		Summary:           s.Target.Summary,
		DueDate:           s.Target.DueDate.Format(dateLayout),
		EstimatedValue:    s.Target.EstimatedValue,
		CreatedAt:         s.Target.CreatedAt,
		BeneficiaryCount:  s.BeneficiaryCount,
		FeePerBeneficiary: s.FeePerBeneficiary,
		FeeFrozenAt:       s.FeeFrozenAt,
	}
}

type contributionResp struct {
	ID                         uuid.UUID               `json:"id"`
	TargetID                   uuid.UUID               `json:"target_id"`
	BeneficiaryID              uuid.UUID               `json:"beneficiary_id"`
	Value                      money.Money             `json:"value"`
	PlatformCommissionReserved money.Money             `json:"platform_commission_reserved"`
	OperatorFee                money.Money             `json:"operator_fee"`
	OperatorFeeStatus          model.OperatorFeeStatus `json:"operator_fee_status"`
	OperatorFeeSettledAt       *time.Time              `json:"operator_fee_settled_at"`
	NetToTarget                money.Money             `json:"net_to_target"`
	PlatformProfit             money.Money             `json:"platform_profit"`
	CreatedAt                  time.Time               `json:"created_at"`
}

func toContributionResp(c model.Contribution) contributionResp {
	return contributionResp{
		ID:                         c.ID,
		TargetID:                   c.TargetID,
		BeneficiaryID:              c.BeneficiaryID,
		Value:                      c.Value,
		PlatformCommissionReserved: c.PlatformCommissionReserved,
		OperatorFee:                c.OperatorFee,
		OperatorFeeStatus:          c.OperatorFeeStatus,
		OperatorFeeSettledAt:       c.OperatorFeeSettledAt,
		NetToTarget:                c.NetToTarget(),
		PlatformProfit:             c.PlatformProfit(),
		CreatedAt:                  c.CreatedAt,
	}
}

func toContributionList(cs []model.Contribution) []contributionResp {
	out := make([]contributionResp, 0, len(cs))
	for _, c := range cs {
		out = append(out, toContributionResp(c))
	}
	return out
}

type createTargetReq struct {
	Description    string `json:"description" binding:"required"`
	Summary        string `json:"summary"`
	DueDate        string `json:"due_date" binding:"required"`
	EstimatedValue string `json:"estimated_value" binding:"required"`
}

func createTargetHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTargetReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		due, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			badRequest(c, "invalid due_date")
			return
		}
		value, ok := parseAmount(c, "estimated_value", req.EstimatedValue)
		if !ok {
			return
		}
		t, err := svc.CreateTarget(c.Request.Context(), service.CreateTargetInput{
			Description:    req.Description,
			Summary:        req.Summary,
			DueDate:        due,
			EstimatedValue: value,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toTargetResp(service.TargetSummary{Target: *t}))
	}
}

func listTargetsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ts, err := svc.ListTargets(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]targetResp, 0, len(ts))
		for _, s := range ts {
			out = append(out, toTargetResp(s))
		}
		c.JSON(http.StatusOK, out)
	}
}

func targetSummaryHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		s, err := svc.GetTargetSummary(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTargetResp(*s))
	}
}

type assignReq struct {
	BeneficiaryIDs []uuid.UUID `json:"beneficiary_ids" binding:"required"`
}

func assignHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req assignReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		added, err := svc.AssignBeneficiaries(c.Request.Context(), id, req.BeneficiaryIDs)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": added})
	}
}

type assignmentResp struct {
	BeneficiaryID uuid.UUID    `json:"beneficiary_id"`
	FeeAmount     *money.Money `json:"fee_amount"`
	FeeFrozenAt   *time.Time   `json:"fee_frozen_at"`
}

func listAssignmentsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		as, err := svc.ListAssignments(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]assignmentResp, 0, len(as))
		for _, a := range as {
			out = append(out, assignmentResp{BeneficiaryID: a.BeneficiaryID, FeeAmount: a.FeeAmount, FeeFrozenAt: a.FeeFrozenAt})
		}
		c.JSON(http.StatusOK, out)
	}
}

func openCollectionHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		res, err := svc.OpenCollection(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"target_id":           res.TargetID,
			"fee_per_beneficiary": res.FeePerBeneficiary,
			"beneficiary_count":   res.BeneficiaryCount,
			"opened_at":           res.OpenedAt,
		})
	}
}

type recordContributionReq struct {
	TargetID               uuid.UUID `json:"target_id" binding:"required"`
	BeneficiaryID          uuid.UUID `json:"beneficiary_id" binding:"required"`
	Value                  string    `json:"value" binding:"required"`
	PlatformCommissionRate string    `json:"platform_commission_rate" binding:"required"`
	OperatorFeeRate        string    `json:"operator_fee_rate" binding:"required"`
}

func recordContributionHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordContributionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		value, ok := parseAmount(c, "value", req.Value)
		if !ok {
			return
		}
		commissionRate, err := decimal.NewFromString(req.PlatformCommissionRate)
		if err != nil {
			badRequest(c, "invalid platform_commission_rate")
			return
		}
		operatorRate, err := decimal.NewFromString(req.OperatorFeeRate)
		if err != nil {
			badRequest(c, "invalid operator_fee_rate")
			return
		}
		contrib, err := svc.RecordContribution(c.Request.Context(), service.RecordContributionInput{
			TargetID:               req.TargetID,
			BeneficiaryID:          req.BeneficiaryID,
			Value:                  value,
			PlatformCommissionRate: commissionRate,
			OperatorFeeRate:        operatorRate,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toContributionResp(*contrib))
	}
}

func targetContributionsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		cs, err := svc.ListContributionsByTarget(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toContributionList(cs))
	}
}

type registerBeneficiaryReq struct {
	DisplayName string `json:"display_name" binding:"required"`
}

func registerBeneficiaryHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerBeneficiaryReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		b, err := svc.RegisterBeneficiary(c.Request.Context(), req.DisplayName)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": b.ID, "display_name": b.DisplayName})
	}
}

func beneficiaryContributionsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		cs, err := svc.ListContributionsByBeneficiary(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toContributionList(cs))
	}
}
