package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stinkymonkeyph/oxide-arbiter/pkg/config"
	"github.com/stinkymonkeyph/oxide-arbiter/pkg/engine"
	"github.com/stinkymonkeyph/oxide-arbiter/pkg/info"
	"github.com/stinkymonkeyph/oxide-arbiter/pkg/xlog"
)

var logger = xlog.GetLogger()

var (
	fApp     string
	fItem    string
	fLogDir  string
	fLogFile string
)

var apps = map[string]bool{"demo": true, "bm": true}

func init() {
	flag.StringVar(&fApp, "app", "demo", "")
	flag.StringVar(&fItem, "item", "BTC_USDT", "")
	flag.StringVar(&fLogDir, "logdir", "", "")
	flag.StringVar(&fLogFile, "logfile", "", "")
}

func main() {
	var err error
	flag.Parse()

	if !apps[fApp] {
		validApps := ""
		for k := range apps {
			validApps += k + ", "
		}
		panic("invalid app, only (" + validApps + ") avaliable")
	}

	config.EasyInit()

	if fLogDir == "" {
		fLogDir = filepath.Join(config.Shared.DataDir, "logs")
	}
	if fLogFile == "" {
		fLogFile = fApp + ".log"
	}
	logPath := filepath.Join(fLogDir, fLogFile)
	xlog.Init(fApp, logPath, nil)
	logger.Infof("%s started instance:%s version:%s", fApp, info.InstanceID, info.Version)
	logger.Infof("xlog in %s", logPath)

	go handleSignals()

	eng := newEngine()

	switch fApp {
	case "demo":
		err = runDemo(eng)
	case "bm":
		err = runBenchmark(eng)
	}

	if err != nil {
		logger.Error(err)
		panic(err)
	}
}

// itemUUID derives a stable item identity from the -item flag so repeated
// runs against the same item name address the same book.
func itemUUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fItem))
}

func newEngine() *engine.Engine {
	bound := engine.DefaultSlippageBound
	if config.Shared != nil && config.Shared.Matching.SlippageBound > 0 {
		bound = decimal.NewFromFloat(config.Shared.Matching.SlippageBound)
	}
	return engine.NewWithSlippageBound(engine.SystemClock{}, engine.UUIDGenerator{}, bound)
}

// handleSignals handles linux signals
//
//	Function 1: Change log level via SIGUSR1 signal
//		docker exec <container_id> sh -c 'export XLOG_LVL=TRACE && kill -SIGUSR1 1'
func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)
	logLevelChan := make(chan string)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGUSR1 {
				level := os.Getenv("XLOG_LVL")
				if level != "" {
					go func() { logLevelChan <- level }()
				}
			}
		case level := <-logLevelChan:
			logger := xlog.GetLogger()
			logger.SetLevel(level)
			logger.Infof("Log level set to %s via signal", level)
		}
	}
}

// runDemo walks through a handful of resting orders and one crossing
// limit order against a single item, printing the resulting trades and
// book state. It exists to exercise the engine end to end, not as part of
// the matching core itself.
func runDemo(eng *engine.Engine) error {
	item := engine.ItemID(itemUUID())
	maker := engine.UserID(uuid.New())
	taker := engine.UserID(uuid.New())

	seed := []engine.CreateOrderRequest{
		{ItemID: item, UserID: maker, Side: engine.Sell, Type: engine.Limit, Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(5), TimeInForce: engine.GTC},
		{ItemID: item, UserID: maker, Side: engine.Sell, Type: engine.Limit, Price: decimal.NewFromInt(102), Quantity: decimal.NewFromInt(5), TimeInForce: engine.GTC},
		{ItemID: item, UserID: maker, Side: engine.Buy, Type: engine.Limit, Price: decimal.NewFromInt(99), Quantity: decimal.NewFromInt(5), TimeInForce: engine.GTC},
	}
	for _, req := range seed {
		if _, err := eng.Submit(req); err != nil {
			return err
		}
	}

	taken, err := eng.Submit(engine.CreateOrderRequest{
		ItemID: item, UserID: taker, Side: engine.Buy, Type: engine.Limit,
		Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(7), TimeInForce: engine.GTC,
	})
	if err != nil {
		return err
	}

	fmt.Printf("taker order %s settled as %s, filled %s of %s\n", taken.ID, taken.Status, taken.QuantityFilled, taken.Quantity)
	for _, t := range eng.Trades() {
		fmt.Printf("trade %s: %s @ %s buy:%s sell:%s\n", t.ID, t.Quantity, t.Price, t.BuyOrderID, t.SellOrderID)
	}
	if best, ok := eng.MarketPrice(item, engine.Sell); ok {
		fmt.Printf("best ask remaining: %s\n", best)
	}

	return nil
}

// runBenchmark submits a large number of random limit orders against a
// single item and reports submission throughput.
func runBenchmark(eng *engine.Engine) error {
	item := engine.ItemID(itemUUID())
	user := engine.UserID(uuid.New())

	target := 200_000
	start := time.Now()

	for i := 0; i < target; i++ {
		side := engine.Buy
		if i%2 == 0 {
			side = engine.Sell
		}
		price := decimal.NewFromInt(90 + rand.Int63n(20))
		qty := decimal.NewFromInt(1 + rand.Int63n(10))

		if _, err := eng.Submit(engine.CreateOrderRequest{
			ItemID: item, UserID: user, Side: side, Type: engine.Limit,
			Price: price, Quantity: qty, TimeInForce: engine.GTC,
		}); err != nil {
			logger.Errorf("submit failed with err:%s", err)
		}
	}

	elapsed := time.Since(start)
	rate := int64(0)
	if int64(elapsed.Seconds()) > 0 {
		rate = int64(target) / int64(elapsed.Seconds())
	}
	fmt.Printf(
		"Benchmark: submitted %d orders in %s at %s with rate %d/sec, trades:%d\n",
		target, elapsed, time.Now().Format(time.RFC3339), rate, len(eng.Trades()),
	)

	return nil
}
