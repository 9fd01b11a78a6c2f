package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/RibkiAnas/resumaker/config"
	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/web"
	"github.com/RibkiAnas/resumaker/web/service"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"
)

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}

	err := database.InitDB(config.GetDBPath())
	if err != nil {
		log.Fatal(err)
	}

	server := web.NewServer()
	err = server.Start()
	if err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			err := server.Stop()
			if err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			err = server.Start()
			if err != nil {
				log.Println(err)
				return
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			logger.CloseLogger()
			if err := database.CloseDB(); err != nil {
				log.Println("close db err:", err)
			}
			return
		}
	}
}

func resetSetting() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	settingService := service.SettingService{}
	err = settingService.ResetSettings()
	if err != nil {
		fmt.Println("reset setting failed:", err)
	} else {
		fmt.Println("reset setting success")
	}
}

func showSetting(show bool) {
	if !show {
		return
	}
	settingService := service.SettingService{}
	port, err := settingService.GetPort()
	if err != nil {
		fmt.Println("get current port failed, error info:", err)
	}
	basePath, err := settingService.GetBasePath()
	if err != nil {
		fmt.Println("get current base path failed, error info:", err)
	}
	fmt.Println("current server settings as follows:")
	fmt.Println("port:", port)
	fmt.Println("base path:", basePath)
}

func updateSetting(port int, basePath string) {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	settingService := service.SettingService{}
	if port > 0 {
		err := settingService.SetPort(port)
		if err != nil {
			fmt.Println("set port failed:", err)
		} else {
			fmt.Printf("set port %v success\n", port)
		}
	}
	if basePath != "" {
		err := settingService.SetBasePath(basePath)
		if err != nil {
			fmt.Println("set base path failed:", err)
		} else {
			fmt.Println("set base path success")
		}
	}
}

// promoteAdmin grants the admin role to an existing account.
func promoteAdmin(username string) {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	userService := service.UserService{}
	user, err := userService.GetUserByUsername(username)
	if err != nil {
		fmt.Println("user not found:", err)
		return
	}

	db := database.GetDB()
	adminRole := &model.Role{}
	if err := db.Where("name = ?", "admin").First(adminRole).Error; err != nil {
		fmt.Println("admin role missing:", err)
		return
	}
	err = db.Model(user).Association("Roles").Append(adminRole)
	if err != nil {
		fmt.Println("promote failed:", err)
		return
	}
	fmt.Printf("%s is now an admin\n", username)
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	var rootCmd = &cobra.Command{
		Use:   "resumaker",
		Short: "resume builder web server",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Inspect or update server settings",
	}

	var (
		show     bool
		reset    bool
		port     int
		basePath string
	)
	var updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update settings",
		Run: func(cmd *cobra.Command, args []string) {
			if reset {
				resetSetting()
				return
			}
			updateSetting(port, basePath)
		},
	}
	updateCmd.Flags().BoolVar(&reset, "reset", false, "reset all settings")
	updateCmd.Flags().IntVar(&port, "port", 0, "web server port")
	updateCmd.Flags().StringVar(&basePath, "webBasePath", "", "base path for URLs")

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Run: func(cmd *cobra.Command, args []string) {
			if err := database.InitDB(config.GetDBPath()); err != nil {
				fmt.Println(err)
				return
			}
			showSetting(true)
		},
	}
	showCmd.Flags().BoolVar(&show, "show", true, "show settings")

	settingCmd.AddCommand(updateCmd, showCmd)

	var adminUsername string
	var promoteCmd = &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to a user",
		Run: func(cmd *cobra.Command, args []string) {
			promoteAdmin(adminUsername)
		},
	}
	promoteCmd.Flags().StringVar(&adminUsername, "username", "", "account to promote")
	promoteCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(runCmd, settingCmd, promoteCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
