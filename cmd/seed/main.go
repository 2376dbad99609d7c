package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ledgerline/ledgerline-backend/internal/businesses"
	"github.com/ledgerline/ledgerline-backend/internal/products"
	"github.com/ledgerline/ledgerline-backend/pkg/auth"
	"github.com/ledgerline/ledgerline-backend/pkg/config"
	"github.com/ledgerline/ledgerline-backend/pkg/db"
	"github.com/ledgerline/ledgerline-backend/pkg/enums"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
)

type seededProduct struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Price          string    `json:"price"`
	QuantityOnHand int       `json:"quantity_on_hand"`
}

type seedResult struct {
	BusinessID uuid.UUID       `json:"business_id"`
	Products   []seededProduct `json:"products"`
	UserID     uuid.UUID       `json:"user_id"`
	Role       enums.Role      `json:"role"`
	Token      string          `json:"token"`
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	businessName := flag.String("business", "Demo Business", "business name")
	productList := flag.String("products", "Widget:10.00:25,Gadget:4.99:100", "comma separated name:price:quantity list")
	roleFlag := flag.String("role", string(enums.RoleCustomer), "role of the minted token")
	flag.Parse()

	seeds, err := parseProductSeeds(*productList)
	exitOn(ctx, logg, "parse products", err)
	role, err := enums.ParseRole(*roleFlag)
	exitOn(ctx, logg, "parse role", err)

	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "bootstrap database", err)
	defer dbClient.Close()

	business, err := businesses.NewRepository(dbClient.DB()).Create(ctx, *businessName)
	exitOn(ctx, logg, "create business", err)

	productRepo := products.NewRepository(dbClient.DB())
	productService, err := products.NewService(productRepo)
	exitOn(ctx, logg, "build product service", err)

	for _, seed := range seeds {
		_, err := productService.CreateProduct(ctx, seed.toInput(business.ID))
		exitOn(ctx, logg, "create product", err)
	}

	stored, err := productRepo.ListByBusiness(ctx, business.ID)
	exitOn(ctx, logg, "list products", err)

	result := seedResult{BusinessID: business.ID, UserID: uuid.New(), Role: role}
	for _, p := range stored {
		result.Products = append(result.Products, seededProduct{
			ID:             p.ID,
			Name:           p.Name,
			Price:          p.PriceCents.String(),
			QuantityOnHand: p.QuantityOnHand,
		})
	}

	result.Token, err = auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: result.UserID,
		Role:   role,
		JTI:    uuid.NewString(),
	})
	exitOn(ctx, logg, "mint token", err)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	exitOn(ctx, logg, "write result", enc.Encode(result))
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "step", step), fmt.Sprintf("seed failed: %s", step), err)
	os.Exit(1)
}
