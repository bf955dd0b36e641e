package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-risk-engine/internal/config"
	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
)

func newTable(out io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func printAssessment(out io.Writer, cfg *config.Config, req risk.AssessmentRequest, a risk.RiskAssessment) {
	t := newTable(out, "TRADE ASSESSMENT")

	decision := text.FgGreen.Sprint("APPROVED")
	if !a.CanOpenPosition {
		decision = text.FgRed.Sprint("BLOCKED")
	}

	t.AppendRows([]table.Row{
		{"Instrument", req.Instrument},
		{"Direction", req.Direction.String()},
		{"Preset", cfg.Risk.Preset},
		{"Balance", fmt.Sprintf("$%.2f", req.AccountBalance)},
		{"Leverage", fmt.Sprintf("%.1fx", req.Leverage)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Entry", fmt.Sprintf("%.4f", req.EntryPrice)},
		{"Stop Loss", fmt.Sprintf("%.4f", a.StopLossPrice)},
		{"Take Profit", fmt.Sprintf("%.4f", a.TakeProfitPrice)},
		{"Risk/Reward", fmt.Sprintf("%.2f", a.RiskReward)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Requested Size", fmt.Sprintf("%.6g", req.Size)},
		{"Optimal Size", fmt.Sprintf("%.6g", a.OptimalSize)},
		{"Recommended Size", fmt.Sprintf("%.6g", a.RecommendedSize)},
		{"Decision", decision},
	})
	if len(a.Reasons) > 0 {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Reasons", strings.Join(a.Reasons, "\n")})
	}
	if len(a.Warnings) > 0 {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Warnings", strings.Join(a.Warnings, "\n")})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 70, Align: text.AlignLeft},
	})
	t.Render()
}

func printReplay(out io.Writer, r replayResult) {
	t := newTable(out, "REPLAY")
	t.AppendRows([]table.Row{
		{"Ticks", r.Ticks},
		{"Exit", r.ExitReason},
		{"Trailing Stop Moves", r.StopMoves},
	})
	if r.ExitReason != "open" {
		t.AppendRows([]table.Row{
			{"Exit Price", fmt.Sprintf("%.4f", r.ExitPrice)},
			{"Realized P&L", fmt.Sprintf("$%.2f", r.RealizedPnL)},
			{"Balance", fmt.Sprintf("$%.2f", r.Balance)},
		})
	}
	if len(r.Emergency) > 0 {
		t.AppendRow(table.Row{"Emergency", strings.Join(r.Emergency, "\n")})
	}
	t.Render()
}

func printPositions(out io.Writer, positions []risk.PositionRisk) {
	if len(positions) == 0 {
		return
	}

	t := newTable(out, "OPEN POSITIONS")
	t.AppendHeader(table.Row{"Instrument", "Side", "Qty", "Entry", "Price", "Stop", "P&L", "P&L %", "Risk %"})
	for _, p := range positions {
		stop := "-"
		if p.StopLoss.Valid {
			stop = fmt.Sprintf("%.4f", p.StopLoss.Value)
		}
		t.AppendRow(table.Row{
			p.Instrument, p.Direction.String(), fmt.Sprintf("%.6g", p.Quantity),
			fmt.Sprintf("%.4f", p.EntryPrice), fmt.Sprintf("%.4f", p.CurrentPrice), stop,
			fmt.Sprintf("%.2f", p.UnrealizedPnL), fmt.Sprintf("%.2f%%", p.UnrealizedPnLPct),
			fmt.Sprintf("%.2f%%", p.RiskPct),
		})
	}
	t.Render()
}

func printPortfolio(out io.Writer, p risk.PortfolioRisk) {
	t := newTable(out, "PORTFOLIO RISK")
	t.AppendRows([]table.Row{
		{"Balance", fmt.Sprintf("$%.2f", p.AccountBalance)},
		{"Total Value", fmt.Sprintf("$%.2f", p.TotalValue)},
		{"Unrealized P&L", fmt.Sprintf("$%.2f (%.2f%%)", p.TotalUnrealizedPnL, p.TotalUnrealizedPnLPct)},
		{"Daily P&L", fmt.Sprintf("$%.2f (%.2f%%)", p.DailyPnL, p.DailyPnLPct)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Open Positions", p.OpenPositions},
		{"Exposure", fmt.Sprintf("$%.2f", p.TotalExposure)},
		{"Risk", fmt.Sprintf("$%.2f (%.2f%%)", p.TotalRiskAmount, p.TotalRiskPct)},
		{"Leverage Used", fmt.Sprintf("%.2fx", p.LeverageUtilization)},
		{"Correlation Risk", fmt.Sprintf("%.2f", p.CorrelationRisk)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"High-Water Mark", fmt.Sprintf("$%.2f", p.HighWaterMark)},
		{"Drawdown", fmt.Sprintf("%.2f%% (max %.2f%%)", p.CurrentDrawdownPct, p.MaxDrawdownPct)},
	})
	t.Render()
}
