package apiclient

import (
	"context"
	"net/http"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
)

// ListCars returns the publicly available fleet. A configured cache is
// consulted first and refreshed on every successful fetch.
func (c *Client) ListCars(ctx context.Context) ([]domain.Car, error) {
	if c.cars != nil {
		cars, err := c.cars.GetCars(ctx)
		if err == nil && cars != nil {
			return cars, nil
		}
		if err != nil {
			c.log.Debug("cars cache miss", logger.Error(err))
		}
	}

	var items []carDTO
	if err := c.getItems(ctx, "/public/cars", &items); err != nil {
		return nil, err
	}
	cars, err := convertAll(items, carDTO.toDomain)
	if err != nil {
		return nil, err
	}

	if c.cars != nil {
		if err := c.cars.SetCars(ctx, cars); err != nil {
			c.log.Warning("failed to cache cars", logger.Error(err))
		}
	}
	return cars, nil
}

func (c *Client) ListActiveCoupons(ctx context.Context) ([]domain.Coupon, error) {
	var items []couponDTO
	if err := c.getItems(ctx, "/public/coupons", &items); err != nil {
		return nil, err
	}
	return convertAll(items, couponDTO.toDomain)
}

func (c *Client) getItems(ctx context.Context, path string, out any) error {
	env := c.Do(ctx, http.MethodGet, path, nil)
	if err := env.Err(); err != nil {
		return err
	}
	return env.DecodeItems(out)
}
