package shipping

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/rates"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const defaultQuoteTimeout = 5 * time.Second

var errNoMatchingQuote = errors.New("rate api returned no matching service")

type rateQuoter interface {
	Quote(ctx context.Context, req rates.QuoteRequest) ([]rates.Quote, error)
}

// FallbackRates parameterise the local distance formula.
type FallbackRates struct {
	BaseCost     int64
	FreeRadiusKm float64
	PerKmCost    int64
	MinCost      int64
	MaxCost      int64
}

// DefaultFallbackRates are used when no configuration is supplied.
var DefaultFallbackRates = FallbackRates{
	BaseCost:     15000,
	FreeRadiusKm: 5,
	PerKmCost:    500,
	MinCost:      15000,
	MaxCost:      150000,
}

// Cost is base inside the free radius, then base plus PerKmCost for every
// started kilometre beyond it, clamped to [MinCost, MaxCost].
func (f FallbackRates) Cost(distanceKm float64) int64 {
	cost := f.BaseCost
	if distanceKm > f.FreeRadiusKm {
		extraKm := int64(math.Ceil(distanceKm - f.FreeRadiusKm))
		cost += extraKm * f.PerKmCost
	}
	if cost < f.MinCost {
		cost = f.MinCost
	}
	if f.MaxCost > 0 && cost > f.MaxCost {
		cost = f.MaxCost
	}
	return cost
}

// EstimateRequest describes one shipment.
type EstimateRequest struct {
	Origin            types.GeoPoint
	Destination       types.GeoPoint
	OriginRegion      string
	DestinationRegion string
	WeightGrams       int
	CourierCode       string
	ServiceCode       string
}

// Estimate is the shipping cost chosen for an order.
type Estimate struct {
	Cost       int64                `json:"cost"`
	Source     enums.ShippingSource `json:"source"`
	Courier    string               `json:"courier"`
	Service    string               `json:"service"`
	DistanceKm float64              `json:"distance_km"`
}

// Estimator prices shipments through the rate API and falls back to the
// distance formula whenever the API cannot answer.
type Estimator struct {
	client   rateQuoter
	breaker  *Breaker
	fallback FallbackRates
	timeout  time.Duration
	metrics  *metrics.ShippingMetrics
	logg     *logger.Logger
}

// NewEstimator builds an estimator. A nil client means every estimate uses
// the fallback.
func NewEstimator(client rateQuoter, cfg config.ShippingConfig, m *metrics.ShippingMetrics, logg *logger.Logger) *Estimator {
	fallback := FallbackRates{
		BaseCost:     cfg.BaseCost,
		FreeRadiusKm: cfg.FreeRadiusKm,
		PerKmCost:    cfg.PerKmCost,
		MinCost:      cfg.MinCost,
		MaxCost:      cfg.MaxCost,
	}
	if fallback == (FallbackRates{}) {
		fallback = DefaultFallbackRates
	}
	timeout := cfg.RateAPITimeout
	if timeout <= 0 {
		timeout = defaultQuoteTimeout
	}

	est := &Estimator{
		client:   client,
		fallback: fallback,
		timeout:  timeout,
		metrics:  m,
		logg:     logg,
	}
	est.breaker = NewBreaker(cfg.BreakerFailureThreshold, cfg.BreakerCooldown, func(state BreakerState) {
		m.SetBreakerState(int(state))
	})
	return est
}

// Breaker exposes the estimator's breaker.
func (e *Estimator) Breaker() *Breaker {
	return e.breaker
}

// Estimate never fails: any API problem yields the fallback cost.
func (e *Estimator) Estimate(ctx context.Context, req EstimateRequest) Estimate {
	distance := DistanceKm(req.Origin, req.Destination)

	if e.client != nil && e.breaker.Allow() {
		quote, err := e.quote(ctx, req)
		switch {
		case err == nil:
			e.breaker.Success()
			e.metrics.IncEstimate(string(enums.ShippingSourceExternal))
			return Estimate{
				Cost:       quote.Cost,
				Source:     enums.ShippingSourceExternal,
				Courier:    quote.Courier,
				Service:    quote.Service,
				DistanceKm: distance,
			}
		case errors.Is(err, errNoMatchingQuote):
			e.breaker.Success()
			e.warn(ctx, "rate api has no matching service, using fallback", err)
		default:
			e.breaker.Failure(errors.Is(err, rates.ErrRateLimited))
			e.warn(ctx, "rate api unavailable, using fallback", err)
		}
	}

	e.metrics.IncEstimate(string(enums.ShippingSourceFallback))
	return Estimate{
		Cost:       e.fallback.Cost(distance),
		Source:     enums.ShippingSourceFallback,
		Courier:    strings.ToLower(req.CourierCode),
		Service:    req.ServiceCode,
		DistanceKm: distance,
	}
}

func (e *Estimator) quote(ctx context.Context, req EstimateRequest) (rates.Quote, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	quotes, err := e.client.Quote(callCtx, rates.QuoteRequest{
		OriginRegion:      req.OriginRegion,
		DestinationRegion: req.DestinationRegion,
		WeightGrams:       req.WeightGrams,
		Courier:           strings.ToLower(req.CourierCode),
		OriginLat:         req.Origin.Lat,
		OriginLng:         req.Origin.Lng,
		DestinationLat:    req.Destination.Lat,
		DestinationLng:    req.Destination.Lng,
	})
	if err != nil {
		return rates.Quote{}, err
	}
	return cheapest(quotes, req.CourierCode, req.ServiceCode)
}

// cheapest picks the lowest-cost quote for courier and, when given, service.
func cheapest(quotes []rates.Quote, courier, service string) (rates.Quote, error) {
	var best rates.Quote
	found := false
	for _, q := range quotes {
		if !strings.EqualFold(q.Courier, courier) {
			continue
		}
		if service != "" && !strings.EqualFold(q.Service, service) {
			continue
		}
		if !found || q.Cost < best.Cost {
			best = q
			found = true
		}
	}
	if !found {
		return rates.Quote{}, errNoMatchingQuote
	}
	return best, nil
}

func (e *Estimator) warn(ctx context.Context, msg string, err error) {
	if e.logg == nil {
		return
	}
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"breaker_state": e.breaker.State().String(),
		"error":         err.Error(),
	})
	e.logg.Warn(logCtx, msg)
}
