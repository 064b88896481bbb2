package main

import (
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/bootstrap"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/seed"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var op int
	var catalogFile string
	var username, password, fullName, email, role string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入排课目录, 2: 插入用户)")
	flag.StringVar(&catalogFile, "catalog", "", "排课目录 JSON 文件，为空时插入内置目录")
	flag.StringVar(&username, "username", "", "新用户的用户名")
	flag.StringVar(&password, "password", "", "新用户的密码")
	flag.StringVar(&fullName, "full-name", "", "新用户的姓名")
	flag.StringVar(&email, "email", "", "新用户的邮箱")
	flag.StringVar(&role, "role", string(domain.RoleViewer), "新用户的角色 (查看者 或 排课员)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbpool, err := bootstrap.OpenDB(cfg)
	if err != nil {
		logger.Error("数据库不可用", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		catalog := seed.DefaultCatalog()
		if catalogFile != "" {
			catalog, err = seed.LoadCatalogFile(catalogFile)
			if err != nil {
				slog.Error("无法读取排课目录", slog.String("file", catalogFile), slog.String("error", err.Error()))
				return
			}
		}
		seed.SeedCatalog(repo, catalog)
	case 2:
		r := domain.Role(role)
		if r != domain.RoleViewer && r != domain.RoleOperator {
			slog.Error("角色不合法", slog.String("role", role))
			return
		}
		if username == "" || password == "" || email == "" {
			slog.Error("用户名、密码和邮箱不能为空")
			return
		}

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("无法生成密码哈希", slog.String("error", err.Error()))
			return
		}

		user := &domain.User{
			Username:     username,
			PasswordHash: string(passwordHash),
			FullName:     fullName,
			Email:        email,
			Role:         r,
		}
		if err := repo.CreateUser(user); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				slog.Error("用户名已存在", slog.String("username", username))
			default:
				slog.Error("无法插入用户", slog.String("error", err.Error()))
			}
			return
		}

		slog.Info("插入用户成功", slog.Int64("id", user.ID), slog.String("username", user.Username))
	default:
		slog.Error("指定的操作非法")
	}
}
