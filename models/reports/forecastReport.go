package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ForecastReportRow is one exported week, flattened for the report surface.
type ForecastReportRow struct {
	ScenarioType       models.ScenarioType `json:"scenario_type"`
	WeekNumber         int                 `json:"week_number"`
	WeekEnding         time.Time           `json:"week_ending"`
	ProjectedInflow    string              `json:"projected_inflow"`
	ProjectedOutflow   string              `json:"projected_outflow"`
	NetPosition        string              `json:"net_position"`
	CumulativePosition string              `json:"cumulative_position"`
	ConfidenceScore    float64             `json:"confidence_score"`
	RiskLevel          models.RiskLevel    `json:"risk_level"`
	CashRunwayDays     int                 `json:"cash_runway_days"`
}

// GetForecastReport returns the latest persisted forecast rows for a user,
// all scenarios, ordered for export. Short-lived cached when the report cache
// is on.
func GetForecastReport(ctx context.Context, userId string) ([]*ForecastReportRow, error) {
	if userId == "" {
		var ok bool
		userId, ok = utils.GetUserIdFromContext(ctx)
		if !ok || userId == "" {
			return nil, errors.New("user id is required")
		}
	}

	started := time.Now()
	defer logSlowReport(ctx, "forecast_report", started, map[string]any{"user_id": userId})

	cacheKey := utils.RedisKeyFor[ForecastReportRow](userId)
	if reportCacheEnabled() {
		var cached []*ForecastReportRow
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	db := config.GetDB()
	var weeks []*models.WeeklyForecast
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("scenario_type ASC, week_number ASC").
		Find(&weeks).Error
	if err != nil {
		return nil, err
	}

	rows := make([]*ForecastReportRow, 0, len(weeks))
	for _, w := range weeks {
		rows = append(rows, &ForecastReportRow{
			ScenarioType:       w.ScenarioType,
			WeekNumber:         w.WeekNumber,
			WeekEnding:         w.WeekEnding,
			ProjectedInflow:    w.ProjectedInflow.StringFixed(2),
			ProjectedOutflow:   w.ProjectedOutflow.StringFixed(2),
			NetPosition:        w.NetPosition.StringFixed(2),
			CumulativePosition: w.CumulativePosition.StringFixed(2),
			ConfidenceScore:    w.ConfidenceScore,
			RiskLevel:          w.RiskLevel,
			CashRunwayDays:     w.CashRunwayDays,
		})
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, rows, reportCacheTTL())
	}
	return rows, nil
}

// ExportForecastExcel builds an xlsx workbook with one sheet per scenario.
func ExportForecastExcel(ctx context.Context, userId string) (*excelize.File, error) {
	rows, err := GetForecastReport(ctx, userId)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no forecast snapshot found; generate a forecast first")
	}

	f := excelize.NewFile()
	headings := []string{
		"Week", "WeekEnding", "ProjectedInflow", "ProjectedOutflow",
		"NetPosition", "CumulativePosition", "Confidence", "RiskLevel", "RunwayDays",
	}

	first := true
	for _, scenario := range models.AllScenarioTypes() {
		sheetName := string(scenario)
		if first {
			// excelize creates Sheet1 by default; rename it instead of leaving
			// an empty sheet in the workbook.
			if err := f.SetSheetName("Sheet1", sheetName); err != nil {
				return nil, err
			}
			first = false
		} else if _, err := f.NewSheet(sheetName); err != nil {
			return nil, err
		}

		// Add headers
		col := 'A'
		for _, h := range headings {
			f.SetCellValue(sheetName, string(col)+"1", h)
			col++
		}

		// Add data
		rowNo := 2
		for _, r := range rows {
			if r.ScenarioType != scenario {
				continue
			}
			f.SetCellValue(sheetName, "A"+fmt.Sprint(rowNo), r.WeekNumber)
			f.SetCellValue(sheetName, "B"+fmt.Sprint(rowNo), r.WeekEnding.UTC().Format("2006-01-02"))
			f.SetCellValue(sheetName, "C"+fmt.Sprint(rowNo), r.ProjectedInflow)
			f.SetCellValue(sheetName, "D"+fmt.Sprint(rowNo), r.ProjectedOutflow)
			f.SetCellValue(sheetName, "E"+fmt.Sprint(rowNo), r.NetPosition)
			f.SetCellValue(sheetName, "F"+fmt.Sprint(rowNo), r.CumulativePosition)
			f.SetCellValue(sheetName, "G"+fmt.Sprint(rowNo), r.ConfidenceScore)
			f.SetCellValue(sheetName, "H"+fmt.Sprint(rowNo), string(r.RiskLevel))
			f.SetCellValue(sheetName, "I"+fmt.Sprint(rowNo), r.CashRunwayDays)
			rowNo++
		}
	}

	return f, nil
}
