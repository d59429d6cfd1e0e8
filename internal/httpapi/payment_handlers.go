package httpapi

import (
	"net/http"

	"xs2a.org/internal/payment"
	"xs2a.org/internal/sca"
)

type createPaymentRequest struct {
	PaymentService        string        `json:"payment_service"`
	PaymentProduct        string        `json:"payment_product"`
	DebtorAccount         string        `json:"debtor_account"`
	CreditorAccount       string        `json:"creditor_account"`
	Currency              string        `json:"currency"`
	Amount                int64         `json:"amount"`
	Psus                  []sca.PsuData `json:"psu_data"`
	MultilevelScaRequired bool          `json:"multilevel_sca_required"`
	TppRedirectPreferred  bool          `json:"tpp_redirect_preferred"`
	TppRedirectURI        string        `json:"tpp_redirect_uri"`
	TppNokRedirectURI     string        `json:"tpp_nok_redirect_uri"`
}

func (a *API) createPayment(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, "pis") {
		return
	}
	var req createPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	number := tppNumber(r)
	if number == "" {
		writeError(w, r, http.StatusBadRequest, "tpp authorisation number is required")
		return
	}

	p, err := a.payments.Create(r.Context(), payment.CreateRequest{
		TppAuthorisationNumber: number,
		PaymentService:         req.PaymentService,
		PaymentProduct:         req.PaymentProduct,
		DebtorAccount:          req.DebtorAccount,
		CreditorAccount:        req.CreditorAccount,
		Currency:               req.Currency,
		Amount:                 req.Amount,
		Psus:                   req.Psus,
		MultilevelScaRequired:  req.MultilevelScaRequired,
	})
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	a.audit(r.Context(), "payment.create", "payment", p.ExternalID, map[string]string{
		"payment_service": p.PaymentService,
		"multilevel":      boolLabel(p.MultilevelScaRequired),
	})

	resp := map[string]any{
		"payment_id":         p.ExternalID,
		"transaction_status": p.Status,
		"_links":             a.parentLinks("payments", p.ExternalID, "authorisations"),
	}
	if a.implicitAuthorisation() {
		auth, err := a.startImplicitAuthorisation(r, sca.TypePisCreation, p.ExternalID, req.Psus, req.TppRedirectPreferred, req.TppRedirectURI, req.TppNokRedirectURI)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		resp["authorisation_id"] = auth.ExternalID
	}
	w.Header().Set("Location", "/v1/payments/"+p.ExternalID)
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) getPayment(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, "pis") {
		return
	}
	p, err := a.payments.Get(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) getPaymentStatus(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, "pis") {
		return
	}
	p, err := a.payments.Get(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction_status": p.Status})
}
