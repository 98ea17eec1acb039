package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]{7,20}$`)
	taxIDPattern = regexp.MustCompile(`^[0-9]{9}$`)
)

// OrderData is the checkout form: customer contacts, delivery and payment choices
type OrderData struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Phone           string `json:"phone" validate:"required,phone"`
	IsCompany       bool   `json:"is_company"`
	CompanyName     string `json:"company_name" validate:"required_if=IsCompany true,max=255"`
	TaxID           string `json:"tax_id"`
	DeliveryMethod  string `json:"delivery_method" validate:"required,oneof=pickup courier post transport_company"`
	DeliveryAddress string `json:"delivery_address" validate:"required_unless=DeliveryMethod pickup"`
	PaymentMethod   string `json:"payment_method" validate:"required,oneof=cash card bank_transfer online"`
	Comment         string `json:"comment" validate:"max=2000"`

	// Staff-side overrides; a nil delivery cost means "use site settings"
	DeliveryCost   *decimal.Decimal `json:"delivery_cost,omitempty"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`

	IPAddress string            `json:"-"`
	UserAgent string            `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

var orderValidator = newOrderValidator()

func newOrderValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateOrderData checks the checkout form and reports every problem at once
func ValidateOrderData(data OrderData) error {
	verrs := &ValidationErrors{}

	if err := orderValidator.Struct(data); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verrs.Add(fe.Field(), validationMessage(fe))
		}
	}

	if data.IsCompany {
		switch {
		case data.TaxID == "":
			verrs.Add("tax_id", "is required for companies")
		case !taxIDPattern.MatchString(data.TaxID):
			verrs.Add("tax_id", "must be exactly 9 digits")
		}
	}
	if data.DeliveryCost != nil && data.DeliveryCost.IsNegative() {
		verrs.Add("delivery_cost", "must not be negative")
	}
	if data.DiscountAmount.IsNegative() {
		verrs.Add("discount_amount", "must not be negative")
	}
	if data.TaxAmount.IsNegative() {
		verrs.Add("tax_amount", "must not be negative")
	}

	return verrs.OrNil()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}
