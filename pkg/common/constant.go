package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyHydroDBType string = "HYDRO_DB_TYPE"
	EnvKeyHydroDbPath string = "HYDRO_DB_PATH"

	EnvKeyHydroHttpHostPort string = "HYDRO_HTTP_HOST_PORT"

	EnvKeyHydroDeviceName         string = "HYDRO_DEVICE_NAME"
	EnvKeyHydroScanTimeoutSeconds string = "HYDRO_SCAN_TIMEOUT_SECONDS"

	EnvKeyHydroDefaultRate  string = "HYDRO_DEFAULT_RATE"
	EnvKeyHydroDefaultBurst string = "HYDRO_DEFAULT_BURST"

	LoggerNameLinkManager       string = "link_manager"
	LoggerNameHydrationCore     string = "hydration_core"
	LoggerNameReminderScheduler string = "reminder_scheduler"
	LoggerNameRestfulServer     string = "restful_server"

	LoggerFieldCategory     string = "category"
	LoggerCategoryCodec     string = "codec"
	LoggerCategoryIntake    string = "intake"
	LoggerCategoryAlert     string = "alert"
	LoggerCategoryPlan      string = "plan"
	LoggerCategoryPolicy    string = "policy"
	LoggerCategoryTransport string = "transport"
)
