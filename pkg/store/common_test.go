package store

import (
	"bufio"
	"encoding/json"
	"io"
	"testing"

	"go.uber.org/mock/gomock"
	"hydrosense.xyz/hydration-link-service/pkg/db"
	"hydrosense.xyz/hydration-link-service/pkg/store/mocks"
)

func GetMockStoreWithMemorySqliteDialector(t *testing.T, useMockIPlan, useMockIIntake bool) (
	*gomock.Controller,
	*Store,
	*mocks.MockIPlan,
	*mocks.MockIIntake,
) {
	ctrl := gomock.NewController(t)

	mockIPlan := mocks.NewMockIPlan(ctrl)
	mockIIntake := mocks.NewMockIIntake(ctrl)
	dialector := db.UseMemorySqliteDialector()
	dbInstance := db.GetInstance(dialector) // ensure migrations
	storeInstance := &Store{Db: *dbInstance}

	planService := storeInstance.GetIPlan()
	if useMockIPlan {
		planService = mockIPlan
	}

	intakeService := storeInstance.GetIIntake()
	if useMockIIntake {
		intakeService = mockIIntake
	}

	storeInstance.WithServices(ServiceOpts{
		Plan:   planService,
		Intake: intakeService,
	})

	return ctrl, storeInstance, mockIPlan, mockIIntake
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
