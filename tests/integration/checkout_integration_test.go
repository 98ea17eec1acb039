package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/controllers"
	"github.com/ironworks/storefront-api/middleware"
	"github.com/ironworks/storefront-api/models"
	"github.com/ironworks/storefront-api/services"
	"github.com/ironworks/storefront-api/tests/testdb"
	"github.com/ironworks/storefront-api/tests/testenv"
	"github.com/ironworks/storefront-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// CheckoutIntegrationTestSuite drives cart, checkout and order handling through the HTTP layer
type CheckoutIntegrationTestSuite struct {
	suite.Suite
	router   *gin.Engine
	db       *gorm.DB
	notifier *services.RecordingNotifier
	category *models.Category
	customer *models.User
}

// SetupSuite runs once before all tests
func (suite *CheckoutIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testenv.MustSet(suite.T())
}

// SetupTest runs before each test
func (suite *CheckoutIntegrationTestSuite) SetupTest() {
	suite.db = testdb.New(suite.T())
	config.SetDB(suite.db)
	config.SetSettings(config.DefaultSettings())
	suite.notifier = &services.RecordingNotifier{}
	services.SetOrderNotifier(suite.notifier)

	category, err := services.NewCatalogService(suite.db, nil).CreateCategory(
		suite.T().Context(), services.CategoryInput{Name: "Valves", Slug: "valves", IsActive: true})
	suite.Require().NoError(err)
	suite.category = category
	suite.customer = testdb.CreateUser(suite.T(), suite.db, "auth0|customer", "customer@example.com", models.RoleCustomer)
	testdb.CreateUser(suite.T(), suite.db, "auth0|staff", "staff@example.com", models.RoleStaff)

	suite.router = gin.New()
	v1 := suite.router.Group("/api/v1")
	{
		guest := v1.Group("/guest")
		guest.POST("/cart/items", controllers.AddCartItem)
		guest.GET("/cart", controllers.GetCart)

		customer := v1.Group("/", testutil.MockAuthMiddleware("auth0|customer", models.RoleCustomer))
		customer.GET("/cart", controllers.GetCart)
		customer.POST("/cart/items", controllers.AddCartItem)
		customer.POST("/cart/merge", controllers.MergeCart)
		customer.POST("/orders", controllers.CreateOrder)
		customer.GET("/orders", controllers.ListOrders)
		customer.GET("/orders/:number", controllers.GetOrder)
		customer.POST("/addresses", controllers.CreateAddress)

		admin := v1.Group("/admin", testutil.MockAuthMiddleware("auth0|staff", models.RoleStaff), middleware.RequireStaff())
		admin.POST("/orders/:id/status", controllers.ChangeOrderStatus)
		admin.GET("/orders/:id/history", controllers.GetOrderHistory)
	}
}

// TearDownTest restores the shared notifier
func (suite *CheckoutIntegrationTestSuite) TearDownTest() {
	services.SetOrderNotifier(nil)
}

func (suite *CheckoutIntegrationTestSuite) request(method, path, sessionKey string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var payload bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if sessionKey != "" {
		req.Header.Set(middleware.SessionKeyHeader, sessionKey)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w, response
}

func (suite *CheckoutIntegrationTestSuite) addToCart(prefix, sessionKey string, product *models.Product, quantity int) {
	w, _ := suite.request(http.MethodPost, prefix+"/cart/items", sessionKey,
		map[string]interface{}{"product_id": product.ID, "quantity": quantity})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
}

func checkoutForm(deliveryAddress string) map[string]interface{} {
	return map[string]interface{}{
		"first_name":       "Olga",
		"last_name":        "Ivanova",
		"email":            "customer@example.com",
		"phone":            "+375 (33) 111-22-33",
		"delivery_method":  models.DeliveryCourier,
		"delivery_address": deliveryAddress,
		"payment_method":   models.PaymentOnline,
	}
}

func uintString(id float64) string {
	return strconv.FormatUint(uint64(id), 10)
}

// TestGuestCartMergedIntoUserCartAtLogin tests the cart merge and a checkout from the merged cart
func (suite *CheckoutIntegrationTestSuite) TestGuestCartMergedIntoUserCartAtLogin() {
	p1 := testdb.CreateProduct(suite.T(), suite.db, suite.category.ID, "ball-valve")
	p2 := testdb.CreateProduct(suite.T(), suite.db, suite.category.ID, "check-valve")
	p3 := testdb.CreateProduct(suite.T(), suite.db, suite.category.ID, "gate-valve", testdb.WithPrice("2.50"))

	guestKey := uuid.NewString()
	suite.addToCart("/guest", guestKey, p1, 2)
	suite.addToCart("/guest", guestKey, p3, 4)
	suite.addToCart("", "", p1, 1)
	suite.addToCart("", "", p2, 1)

	w, response := suite.request(http.MethodPost, "/cart/merge", guestKey, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	quantities := map[string]float64{}
	for _, raw := range response["data"].(map[string]interface{})["items"].([]interface{}) {
		item := raw.(map[string]interface{})
		product := item["product"].(map[string]interface{})
		quantities[product["slug"].(string)] = item["quantity"].(float64)
	}
	assert.Equal(suite.T(), map[string]float64{"ball-valve": 3, "check-valve": 1, "gate-valve": 4}, quantities)

	var guestCarts int64
	suite.Require().NoError(suite.db.Model(&models.Cart{}).Where("session_key = ?", guestKey).Count(&guestCarts).Error)
	assert.Zero(suite.T(), guestCarts, "the guest cart is deleted after the merge")

	w, response = suite.request(http.MethodPost, "/addresses", "", map[string]interface{}{
		"recipient_name": "Olga Ivanova",
		"phone":          "+375331112233",
		"city":           "Grodno",
		"street":         "Sovetskaya",
		"building":       "12",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, response = suite.request(http.MethodPost, "/orders", "", checkoutForm(""))
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	order := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "Grodno, Sovetskaya, bld. 12", order["delivery_address"], "the default address fills the form")
	assert.Equal(suite.T(), "50", order["subtotal"])
	assert.Equal(suite.T(), "65", order["total_amount"])
	assert.Equal(suite.T(), float64(suite.customer.ID), order["user_id"])

	w, response = suite.request(http.MethodGet, "/cart", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), float64(0), response["data"].(map[string]interface{})["items_count"])

	var stored models.Product
	suite.Require().NoError(suite.db.First(&stored, p1.ID).Error)
	assert.Equal(suite.T(), int64(1), stored.OrdersCount)
	assert.Len(suite.T(), suite.notifier.Events(), 1)
}

// TestOrderLifecycle tests staff status changes as seen by the customer
func (suite *CheckoutIntegrationTestSuite) TestOrderLifecycle() {
	product := testdb.CreateProduct(suite.T(), suite.db, suite.category.ID, "ball-valve")
	suite.addToCart("", "", product, 2)

	w, response := suite.request(http.MethodPost, "/orders", "", checkoutForm("Minsk, Pobediteley 1"))
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	order := response["data"].(map[string]interface{})
	number := order["number"].(string)
	id := uintString(order["id"].(float64))

	for _, status := range []string{"confirmed", "processing", "paid", "shipped"} {
		w, response = suite.request(http.MethodPost, "/admin/orders/"+id+"/status", "", map[string]interface{}{"status": status})
		suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}

	w, response = suite.request(http.MethodPost, "/admin/orders/"+id+"/status", "", map[string]interface{}{"status": "cancelled"})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code, "shipped orders can only be refunded")

	w, response = suite.request(http.MethodGet, "/orders/"+number, "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	order = response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "shipped", order["status"])
	assert.Equal(suite.T(), true, order["is_paid"])
	assert.NotNil(suite.T(), order["paid_at"])

	w, response = suite.request(http.MethodGet, "/admin/orders/"+id+"/history", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	history := response["data"].([]interface{})
	suite.Require().Len(history, 5)
	for _, raw := range history[1:] {
		assert.Equal(suite.T(), "staff@example.com", raw.(map[string]interface{})["changed_by"])
	}
}

// TestCheckoutRejectsInvalidForm tests that a rejected checkout leaves no trace
func (suite *CheckoutIntegrationTestSuite) TestCheckoutRejectsInvalidForm() {
	product := testdb.CreateProduct(suite.T(), suite.db, suite.category.ID, "ball-valve")
	suite.addToCart("", "", product, 1)

	form := checkoutForm("")
	form["phone"] = "call me"
	w, response := suite.request(http.MethodPost, "/orders", "", form)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", response["error"].(map[string]interface{})["code"])

	var orders int64
	suite.Require().NoError(suite.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(suite.T(), orders)

	w, response = suite.request(http.MethodGet, "/cart", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), float64(1), response["data"].(map[string]interface{})["items_count"])
	assert.Empty(suite.T(), suite.notifier.Events())
}

// TestRunSuite runs the test suite
func TestCheckoutIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutIntegrationTestSuite))
}
