package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"ChatRelay/models"
	"ChatRelay/repositories"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CustomerHandler struct {
	repo repositories.ICustomerRepository
}

func NewCustomerHandler(repo repositories.ICustomerRepository) *CustomerHandler {
	return &CustomerHandler{repo: repo}
}

type AddressDTO struct {
	Street string `json:"street" validate:"required"`
	City   string `json:"city"   validate:"required"`
	Zip    string `json:"zip"    validate:"required"`
}

type CreateCustomerDTO struct {
	FirstName string       `json:"first_name" validate:"required,max=100"`
	LastName  string       `json:"last_name"  validate:"required,max=100"`
	Addresses []AddressDTO `json:"addresses"  validate:"dive"`
}

func (h *CustomerHandler) CreateCustomer(c echo.Context) error {
	var dto CreateCustomerDTO
	if err := c.Bind(&dto); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if err := c.Validate(&dto); err != nil {
		return err
	}

	customer := models.Customer{
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
	}
	for _, a := range dto.Addresses {
		customer.Addresses = append(customer.Addresses, models.Address{
			Street: a.Street,
			City:   a.City,
			Zip:    a.Zip,
		})
	}

	if err := h.repo.Create(&customer); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create customer",
		})
	}

	return c.JSON(http.StatusCreated, customer)
}

func (h *CustomerHandler) GetCustomer(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid customer id",
		})
	}

	customer, err := h.repo.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "customer not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch customer",
		})
	}

	return c.JSON(http.StatusOK, customer)
}

// SearchCustomers dispatches on the query params to the matching finder:
// last_name alone, first_name+last_name, or last_name with sort=first_name.
func (h *CustomerHandler) SearchCustomers(c echo.Context) error {
	firstName := c.QueryParam("first_name")
	lastName := c.QueryParam("last_name")
	sort := c.QueryParam("sort")

	if lastName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "last_name is required",
		})
	}

	var (
		customers []models.Customer
		err       error
	)
	switch {
	case firstName != "":
		customers, err = h.repo.FindByFirstNameAndLastName(firstName, lastName)
	case sort == "first_name":
		customers, err = h.repo.FindByLastNameOrderByFirstNameAsc(lastName)
	default:
		customers, err = h.repo.FindByLastName(lastName)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to search customers",
		})
	}

	return c.JSON(http.StatusOK, customers)
}

func (h *CustomerHandler) GetCustomersByCity(c echo.Context) error {
	city := c.Param("city")

	customers, err := h.repo.FindByAddressCity(city)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch customers",
		})
	}

	return c.JSON(http.StatusOK, customers)
}

func (h *CustomerHandler) CountCustomersByCity(c echo.Context) error {
	city := c.Param("city")

	count, err := h.repo.CountByAddressCity(city)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to count customers",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"city":  city,
		"count": count,
	})
}
