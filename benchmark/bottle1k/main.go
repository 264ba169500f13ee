package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

var maxClients int = 1000
var httpHostPort string = "127.0.0.1:1080"

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))

func main() {
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		log.Fatal("Failed to connect to HTTP server:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatal("HTTP server not available")
	}

	fmt.Printf("http server verified\n")

	var startTime time.Time
	var usedTime time.Duration

	startTime = time.Now()
	wg := sync.WaitGroup{}
	for i := 0; i < maxClients; i++ {
		i := i
		wg.Add(1)
		go func() {
			upsertPlan()
			fmt.Printf("\rupserted plan for client %v", i)
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\rupserted plans for %v clients: used time=%v seconds, throughput=%v action/second\n",
		maxClients, usedTime.Seconds(), float64(maxClients)/usedTime.Seconds(),
	)

	startTime = time.Now()
	wg = sync.WaitGroup{}
	for i := 0; i < maxClients; i++ {
		i := i
		wg.Add(1)
		go func() {
			doAction(i)
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\n\rdid actions for %v clients: used time=%v seconds, throughput=%v action/second\n",
		maxClients, usedTime.Seconds(), float64(maxClients*3)/usedTime.Seconds(),
	)
}

func flipCoin() bool {
	return rnd.Int31n(100000)%2 == 0
}

func rndFloat64(min, max float64, decimal int) float64 {
	val := min + rnd.Float64()*(max-min)
	multiplier := float64(math.Pow10(decimal))
	return float64(math.Round(float64(val)*float64(multiplier))) / multiplier
}

func planType() string {
	if flipCoin() {
		return "healthy"
	}
	return "disease"
}

func upsertPlan() {
	payload := map[string]any{
		"daily_goal_ml":         rndFloat64(1500.0, 4000.0, 0),
		"reminder_gap_hours":    rndFloat64(1.0, 4.0, 1),
		"enabled":               true,
		"notifications_enabled": flipCoin(),
	}
	pt := planType()
	if pt == "disease" {
		payload["condition_name"] = "kidney stones"
	}

	jsonData, _ := json.Marshal(payload)
	resp, err := http.Post(fmt.Sprintf("http://%s/plans/%s", httpHostPort, pt), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
}

func doAction(clientIndex int) {
	actions := []func(){
		genUpsertPlanAction(),
		genGetPlanAction(),
		genIntakeSummaryAction(),
		genDeviceStatusAction(),
	}
	actionNames := []string{
		"UpsertPlan",
		"GetPlan",
		"IntakeSummary",
		"DeviceStatus",
	}
	rnd.Shuffle(len(actions), func(i, j int) {
		actions[i], actions[j] = actions[j], actions[i]
		actionNames[i], actionNames[j] = actionNames[j], actionNames[i]
	})
	for index, action := range actions {
		action()
		fmt.Printf("\rexecuted action %v for client %v", actionNames[index], clientIndex)
		time.Sleep(time.Duration(100+rnd.Int31n(1000)) * time.Millisecond)
	}
}

func genUpsertPlanAction() func() {
	return func() {
		upsertPlan()
	}
}

func genGetPlanAction() func() {
	return func() {
		resp, err := http.Get(fmt.Sprintf("http://%s/plans/%s", httpHostPort, planType()))
		if err != nil {
			fmt.Printf("\nerror: %v\n", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
			fmt.Printf("\nunexpected response status code: %v\n", resp)
		}
	}
}

func genIntakeSummaryAction() func() {
	return func() {
		hours := 1 + rnd.Int31n(48)
		resp, err := http.Get(fmt.Sprintf("http://%s/intake/summary?hours=%v", httpHostPort, hours))
		if err != nil {
			fmt.Printf("\nerror: %v\n", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("\nresponse status code != 200: %v\n", resp)
		}
	}
}

func genDeviceStatusAction() func() {
	return func() {
		resp, err := http.Get(fmt.Sprintf("http://%s/device/status", httpHostPort))
		if err != nil {
			fmt.Printf("\nerror: %v\n", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("\nresponse status code != 200: %v\n", resp)
		}
	}
}
