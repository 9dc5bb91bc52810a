package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/assist-by/hedger/internal/engine"
	"github.com/assist-by/hedger/internal/position"
)

func printReport(cmd *cobra.Command, r *engine.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "틱 %s  봉 %s  가격 %.2f\n", r.TickID, r.BarTime.Format(time.RFC3339), r.Price)
	for _, tr := range r.Transitions {
		fmt.Fprintf(out, "  슬롯 %d #%d %s %s 청산가 %.2f", tr.Slot, tr.TradeID, tr.Kind, tr.Side, tr.ExitPrice)
		if tr.NewStop > 0 {
			fmt.Fprintf(out, " 새 손절가 %.2f", tr.NewStop)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "  진입: %s", r.Entry.Result)
	if r.Entry.Err != nil {
		fmt.Fprintf(out, " (%v)", r.Entry.Err)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  자본 %.4f  열린 쌍 %d  다음 봉 %s\n",
		r.Capital, r.OpenPairs, r.NextTimestamp.Format(time.RFC3339))
}

func printStatus(cmd *cobra.Command, s *engine.StatusReport) {
	acct := s.Account
	out := cmd.OutOrStdout()

	mode := "모의"
	if acct.RealMode() {
		mode = "실거래"
	}
	fmt.Fprintf(out, "%s (%s)  레버리지 %dx  수수료율 %.5f\n", acct.Symbol(), mode, acct.Leverage(), acct.FeeRate())
	fmt.Fprintf(out, "자본 %.4f  슬롯 %d/%d  다음 봉 %s\n",
		acct.Capital(), acct.OpenPositions(), acct.MaxOpenPositions(), acct.NextTimestamp().Format(time.RFC3339))
	fmt.Fprintf(out, "청산된 쌍 %d  실현 손익 %.4f  강제 청산 %d\n",
		s.Summary.ClosedPairs, s.Summary.RealizedPnL, s.Summary.ForcedExits)

	slots := acct.OccupiedSlots()
	if len(slots) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nSLOT\tID\tSTAGE\tSIDE\tQTY\tENTRY\tSTOP\tTARGET\tEXIT")
	for _, slot := range slots {
		pair, _ := acct.Pair(slot)
		for _, side := range position.Sides {
			leg := pair.Leg(side)
			exit := "-"
			if !leg.IsOpen() {
				exit = fmt.Sprintf("%.2f", leg.ExitPrice)
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%.3f\t%.2f\t%.2f\t%.2f\t%s\n",
				slot, pair.ID(), pair.Stage(), side, leg.Qty, leg.EntryPrice, leg.StopLossPrice, leg.TakeProfitPrice, exit)
		}
	}
	w.Flush()
}
