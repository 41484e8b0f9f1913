package handler

import (
	"net/http"
	"strconv"

	appcustomer "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CustomerHandler handles customer-related API endpoints
type CustomerHandler struct {
	BaseHandler
	service *appcustomer.Service
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(service *appcustomer.Service) *CustomerHandler {
	return &CustomerHandler{service: service}
}

// Create godoc
// @ID           createCustomer
// @Summary      Create a customer
// @Description  Store a new customer record. The server assigns the id and creation time.
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        request body customer.CreateCustomerRequest true "Customer fields"
// @Success      201 {object} dto.Response{data=customer.CustomerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	var req appcustomer.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	resp, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @ID           listCustomers
// @Summary      List customers
// @Description  Every customer in id order
// @Tags         customers
// @Produce      json
// @Success      200 {object} dto.Response{data=[]customer.CustomerResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	resp, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListRecent godoc
// @ID           listRecentCustomers
// @Summary      List recent customers
// @Description  The newest customers first, at most limit of them
// @Tags         customers
// @Produce      json
// @Param        limit query int false "Window size, defaults to the configured recent limit"
// @Success      200 {object} dto.Response{data=[]customer.CustomerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /customers/recent [get]
func (h *CustomerHandler) ListRecent(c *gin.Context) {
	var query appcustomer.RecentCustomersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.HandleBindError(c, err)
		return
	}

	resp, err := h.service.ListRecent(c.Request.Context(), query.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Search godoc
// @ID           searchCustomers
// @Summary      Search customers
// @Description  Case-insensitive substring match on name or email. The query is matched as given.
// @Tags         customers
// @Produce      json
// @Param        q query string true "Substring to look for"
// @Success      200 {object} dto.Response{data=[]customer.CustomerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /customers/search [get]
func (h *CustomerHandler) Search(c *gin.Context) {
	var query appcustomer.SearchCustomersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.HandleBindError(c, err)
		return
	}

	resp, err := h.service.Search(c.Request.Context(), query.Query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetByID godoc
// @ID           getCustomer
// @Summary      Get a customer
// @Description  An unknown id answers 200 with null data.
// @Tags         customers
// @Produce      json
// @Param        id path int true "Customer id"
// @Success      200 {object} dto.NullableResponse{data=customer.CustomerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /customers/{id} [get]
func (h *CustomerHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	result, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if found, present := result.Get(); present {
		c.JSON(http.StatusOK, dto.NewNullableResponse(found))
		return
	}
	c.JSON(http.StatusOK, dto.NewNullableResponse(nil))
}

// Update godoc
// @ID           updateCustomer
// @Summary      Update a customer
// @Description  Omitted or null fields are left unchanged. PUT behaves the same as PATCH.
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        id path int true "Customer id"
// @Param        request body customer.UpdateCustomerRequest true "Fields to change"
// @Success      200 {object} dto.Response{data=customer.CustomerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /customers/{id} [patch]
// @Router       /customers/{id} [put]
func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req appcustomer.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	resp, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *CustomerHandler) parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.BadRequest(c, "Customer id must be an integer")
		return 0, false
	}
	return id, true
}
