package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/moat-scoring/internal/services"
)

// CompanyHandler registers companies and reads them back
type CompanyHandler struct {
	companyService services.CompanyService
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companyService services.CompanyService) *CompanyHandler {
	return &CompanyHandler{companyService: companyService}
}

// CreateCompany registers a company in the not_scored state
func (h *CompanyHandler) CreateCompany(c *gin.Context) {
	var input services.CompanyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request format: "+err.Error())
		return
	}

	company, err := h.companyService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"company": company})
}

// GetCompany returns a company with its certifications
func (h *CompanyHandler) GetCompany(c *gin.Context) {
	id, ok := companyID(c)
	if !ok {
		return
	}

	company, err := h.companyService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"company": company})
}
