package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/controllers"
	"github.com/ironworks/storefront-api/middleware"
)

// setupRouter wires every /api/v1 route
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.SessionKeyHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.SessionKeyHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecureHeaders(cfg.IsDevelopment()))

	optionalAuth := middleware.OptionalToken(cfg)
	requireAuth := middleware.EnsureValidToken(cfg)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		// Catalog
		v1.GET("/categories", controllers.GetCategoryTree)
		v1.GET("/categories/*path", controllers.GetCategory)
		v1.GET("/products", controllers.ListProducts)
		v1.GET("/products/:slug", controllers.GetProduct)

		// Cart, for signed-in users and X-Session-Key holders
		cart := v1.Group("/cart", optionalAuth)
		{
			cart.GET("", controllers.GetCart)
			cart.DELETE("", controllers.ClearCart)
			cart.POST("/items", controllers.AddCartItem)
			cart.PUT("/items/:product_id", controllers.UpdateCartItem)
			cart.DELETE("/items/:product_id", controllers.RemoveCartItem)
		}
		v1.POST("/cart/merge", requireAuth, middleware.RequireUser(), controllers.MergeCart)

		// Checkout
		v1.POST("/orders", optionalAuth, controllers.CreateOrder)
		orders := v1.Group("/orders", requireAuth, middleware.RequireUser())
		{
			orders.GET("", controllers.ListOrders)
			orders.GET("/:number", controllers.GetOrder)
		}

		// Users
		v1.POST("/users", requireAuth, controllers.CreateUser)
		me := v1.Group("/users/me", requireAuth)
		{
			me.GET("", controllers.GetMyProfile)
			me.PUT("", controllers.UpdateMyProfile)
		}

		// Address book
		addresses := v1.Group("/addresses", requireAuth, middleware.RequireUser())
		{
			addresses.GET("", controllers.ListAddresses)
			addresses.POST("", controllers.CreateAddress)
			addresses.PUT("/:id", controllers.UpdateAddress)
			addresses.DELETE("/:id", controllers.DeleteAddress)
			addresses.POST("/:id/default", controllers.SetDefaultAddress)
		}

		// Wishlist
		wishlist := v1.Group("/wishlist", requireAuth, middleware.RequireUser())
		{
			wishlist.GET("", controllers.GetWishlist)
			wishlist.POST("/:product_id", controllers.AddToWishlist)
			wishlist.DELETE("/:product_id", controllers.RemoveFromWishlist)
		}

		// Staff; AUTH0_ADMIN_SCOPE, when set, is required on top of the role
		admin := v1.Group("/admin", requireAuth, middleware.RequireScope(cfg.AdminScope), middleware.RequireStaff())
		{
			admin.GET("/categories", controllers.AdminListCategories)
			admin.POST("/categories", controllers.CreateCategory)
			admin.PUT("/categories/:id", controllers.UpdateCategory)
			admin.DELETE("/categories/:id", controllers.DeleteCategory)

			admin.GET("/products/:id", controllers.AdminGetProduct)
			admin.POST("/products", controllers.CreateProduct)
			admin.PUT("/products/:id", controllers.UpdateProduct)
			admin.DELETE("/products/:id", controllers.DeleteProduct)
			admin.POST("/products/:id/images", controllers.UploadProductImage)
			admin.POST("/products/:id/images/:image_id/main", controllers.SetMainProductImage)
			admin.DELETE("/products/:id/images/:image_id", controllers.DeleteProductImage)

			admin.GET("/orders", controllers.AdminListOrders)
			admin.GET("/orders/:id", controllers.AdminGetOrder)
			admin.GET("/orders/:id/history", controllers.GetOrderHistory)
			admin.POST("/orders/:id/status", controllers.ChangeOrderStatus)
			admin.POST("/orders/:id/paid", controllers.MarkOrderPaid)
			admin.PUT("/orders/:id/adjustments", controllers.SetOrderAdjustments)
		}
	}

	return router
}
