package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/profile"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Compute a volume profile (POC / value area) over a dataset's candles",
	}
	cmd.AddCommand(newProfileComputeCmd())
	return cmd
}

func newProfileComputeCmd() *cobra.Command {
	var dataPath, marketFlag, pocRuleFlag, vaRuleFlag string
	var bucketSize, valueAreaPct float64

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Bucket a market's candle volume by price and compute POC/value-area stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			sd, symbols, err := loadDataset(dataPath)
			if err != nil {
				return err
			}
			market, err := resolveMarket(symbols, marketFlag)
			if err != nil {
				return err
			}
			if bucketSize <= 0 {
				bucketSize = symbols[market].TickSize
			}
			if bucketSize <= 0 {
				return fmt.Errorf("profile: bucket-size must be positive")
			}

			pocRule, err := parsePocRule(pocRuleFlag)
			if err != nil {
				return err
			}
			vaRule, err := parseValueAreaRule(vaRuleFlag)
			if err != nil {
				return err
			}

			bins := bucketCandles(sd.Candles[market], bucketSize)
			stats, err := profile.Compute(bins, valueAreaPct, pocRule, vaRule)
			if err != nil {
				return fmt.Errorf("profile: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "market profile (%s, %d bins):\n", market, len(bins))
			fmt.Fprintf(out, "  %-16s %12.6f\n", "poc", stats.POC)
			fmt.Fprintf(out, "  %-16s %12.6f\n", "value_area_low", stats.ValueAreaLow)
			fmt.Fprintf(out, "  %-16s %12.6f\n", "value_area_high", stats.ValueAreaHi)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to a market dataset JSON file (required)")
	cmd.Flags().StringVar(&marketFlag, "market", "", "broker:exchange:symbol:period of the market to profile (default: first in the dataset)")
	cmd.Flags().Float64Var(&bucketSize, "bucket-size", 0, "price-bucket width (default: the market's tick size)")
	cmd.Flags().Float64Var(&valueAreaPct, "value-area-pct", 0.70, "fraction of total volume the value area must cover")
	cmd.Flags().StringVar(&pocRuleFlag, "poc-rule", "lowest_price", "POC tie-break rule: lowest_price | highest_price | closest_to_center")
	cmd.Flags().StringVar(&vaRuleFlag, "value-area-rule", "highest_volume", "value-area expansion rule: highest_volume | highest_volume_prefer_lower | symmetric")
	cmd.MarkFlagRequired("data")

	return cmd
}

// bucketCandles folds a candle stream's (typical-price, volume) mass
// into fixed-width price buckets, producing the strictly-ascending Bin
// slice profile.Compute requires.
func bucketCandles(candles []event.OHLCV, bucketSize float64) []profile.Bin {
	byBucket := map[int64]float64{}
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		bucket := int64(math.Floor(typical / bucketSize))
		byBucket[bucket] += c.Volume
	}

	keys := make([]int64, 0, len(byBucket))
	for k := range byBucket {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	bins := make([]profile.Bin, len(keys))
	for i, k := range keys {
		bins[i] = profile.Bin{Price: float64(k) * bucketSize, Value: byBucket[k]}
	}
	return bins
}

func parsePocRule(s string) (profile.PocRule, error) {
	switch s {
	case "lowest_price", "":
		return profile.LowestPrice, nil
	case "highest_price":
		return profile.HighestPrice, nil
	case "closest_to_center":
		return profile.ClosestToCenter, nil
	default:
		return 0, fmt.Errorf("profile: unknown poc-rule %q", s)
	}
}

func parseValueAreaRule(s string) (profile.ValueAreaRule, error) {
	switch s {
	case "highest_volume", "":
		return profile.HighestVolume, nil
	case "highest_volume_prefer_lower":
		return profile.HighestVolumePreferLower, nil
	case "symmetric":
		return profile.Symmetric, nil
	default:
		return 0, fmt.Errorf("profile: unknown value-area-rule %q", s)
	}
}
