package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"unit-pricing/config"
	"unit-pricing/models"
	"unit-pricing/utils"
)

// ErrInvalidNumber is returned when a numeric cell cannot be parsed.
// Malformed numbers abort the run instead of being dropped.
var ErrInvalidNumber = errors.New("invalid number")

// missingTokens are cell values read as "no value", as spreadsheet exports
// write them.
var missingTokens = map[string]struct{}{
	"": {}, "nan": {}, "na": {}, "n/a": {}, "null": {}, "none": {}, "#n/a": {},
}

// Floors outside this range are treated as data errors.
const (
	minFloor = -100
	maxFloor = 1000
)

// Cleaner transforms raw export rows into clean, validated records.
// The output does not depend on the configured price field; units without
// an area are kept and skipped later by the per-area analyses.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean processes raw unit rows and returns cleaned units.
// Rows missing floor or price are dropped; non-numeric floor, price or area
// fail with ErrInvalidNumber.
func (c *Cleaner) Clean(raw []*models.RawUnit) ([]*models.Unit, error) {
	result := make([]*models.Unit, 0, len(raw))

	for _, r := range raw {
		floorText := cell(r, config.ColFloor)
		priceText := cell(r, config.ColPrice)
		if isMissing(floorText) || isMissing(priceText) {
			c.logger.Warn("[cleaner] Dropping line %d: missing floor or price", r.Line)
			continue
		}

		floor, err := parseFloor(floorText)
		if err != nil {
			return nil, fmt.Errorf("cleaner: line %d column %s: %w", r.Line, config.ColFloor, err)
		}
		price, err := parseNumber(priceText)
		if err != nil {
			return nil, fmt.Errorf("cleaner: line %d column %s: %w", r.Line, config.ColPrice, err)
		}
		if price <= 0 {
			c.logger.Warn("[cleaner] Dropping line %d: non-positive price %.2f", r.Line, price)
			continue
		}

		unit := &models.Unit{
			Project:     keyPart(cell(r, config.ColProject)),
			Subdivision: keyPart(cell(r, config.ColSubdivision)),
			Typology:    keyPart(cell(r, config.ColTypology)),
			Name:        keyPart(cell(r, config.ColUnit)),
			Floor:       floor,
			Price:       price,
		}

		if areaText := cell(r, config.ColArea); !isMissing(areaText) {
			area, err := parseNumber(areaText)
			if err != nil {
				return nil, fmt.Errorf("cleaner: line %d column %s: %w", r.Line, config.ColArea, err)
			}
			if area > 0 {
				ppa := price / area
				unit.Area = &area
				unit.PricePerArea = &ppa
			}
		}

		if monthText := cell(r, config.ColMonth); !isMissing(monthText) {
			month, ok := utils.ParseDate(monthText)
			if !ok {
				return nil, fmt.Errorf("cleaner: line %d column %s: unparseable date %q", r.Line, config.ColMonth, monthText)
			}
			unit.Month = models.MonthStart(month)
		}

		result = append(result, unit)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d units (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result, nil
}

// CleanReservations turns raw reservation rows into records. dateColumn is
// "mes" for the monthly panel or "fecha" for the forecast series.
func (c *Cleaner) CleanReservations(raw []*models.RawUnit, dateColumn string) ([]models.Reservation, error) {
	result := make([]models.Reservation, 0, len(raw))

	for _, r := range raw {
		dateText := cell(r, dateColumn)
		countText := cell(r, config.ColReservations)
		if isMissing(dateText) || isMissing(countText) {
			c.logger.Debug("[cleaner] Dropping reservation line %d: missing date or count", r.Line)
			continue
		}

		date, ok := utils.ParseDate(dateText)
		if !ok {
			return nil, fmt.Errorf("cleaner: line %d column %s: unparseable date %q", r.Line, dateColumn, dateText)
		}
		count, err := parseNumber(countText)
		if err != nil {
			return nil, fmt.Errorf("cleaner: line %d column %s: %w", r.Line, config.ColReservations, err)
		}

		result = append(result, models.Reservation{
			Project:  keyPart(cell(r, config.ColProject)),
			Typology: keyPart(cell(r, config.ColTypology)),
			Date:     date,
			Count:    count,
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d reservation rows", len(raw), len(result))
	return result, nil
}

func cell(r *models.RawUnit, col string) string {
	return strings.TrimSpace(r.Fields[col])
}

func isMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func keyPart(s string) models.KeyPart {
	if isMissing(s) {
		return models.Unknown()
	}
	return models.Known(s)
}

// parseNumber accepts plain decimal notation only; thousands separators
// and currency symbols are rejected.
func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return f, nil
}

// parseFloor accepts integers and integral floats such as "3.0" between
// minFloor and maxFloor.
func parseFloor(s string) (int, error) {
	f, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: floor %q is not an integer", ErrInvalidNumber, s)
	}
	if f < minFloor || f > maxFloor {
		return 0, fmt.Errorf("%w: floor %q outside [%d, %d]", ErrInvalidNumber, s, minFloor, maxFloor)
	}
	return int(f), nil
}
