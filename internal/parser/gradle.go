package parser

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

// Dependency and plugin declarations in both Groovy and Kotlin DSL:
//
//	implementation 'com.squareup.okhttp3:okhttp:4.12.0'
//	testImplementation("junit:junit:4.13.2")
//	id 'com.android.application'
//	id("org.jetbrains.kotlin.android") version "1.9.0"
var (
	gradleDepRe    = regexp.MustCompile(`^\s*(implementation|api|compileOnly|runtimeOnly|testImplementation|androidTestImplementation|annotationProcessor|kapt|ksp|classpath|debugImplementation)\s*[\(]?\s*["']([^"']+)["']`)
	gradlePluginRe = regexp.MustCompile(`^\s*id\s*[\(]?\s*["']([^"']+)["']`)
	gradleApplyRe  = regexp.MustCompile(`^\s*apply\s+plugin:\s*["']([^"']+)["']`)
	gradleSDKRe    = regexp.MustCompile(`^\s*(minSdk|targetSdk|compileSdk|minSdkVersion|targetSdkVersion|compileSdkVersion)\s*[=\s\(]\s*(\d+)`)
	gradleIncRe    = regexp.MustCompile(`^\s*include\s*[\(]?\s*["']([^"']+)["']`)
)

// parseGradle extracts dependency coordinates, plugins, SDK versions and
// included modules from a build script by direct line scanning. Build
// scripts are programs, but the declarations the graph needs are flat
// enough that no grammar is required. Returns ParseFailure only for
// undecodable input.
func parseGradle(path string, source []byte) (*entity.ParsedFile, error) {
	if !isMostlyText(source) {
		return nil, &ParseFailure{Path: path, Reason: "binary content"}
	}

	pf := &entity.ParsedFile{Path: path, Language: string(lang.Gradle)}
	sc := bufio.NewScanner(bytes.NewReader(source))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.Index(text, "//"); i >= 0 {
			text = text[:i]
		}

		if m := gradleDepRe.FindStringSubmatch(text); m != nil {
			pf.Globals = append(pf.Globals, entity.Variable{
				Name:      m[2],
				StartLine: line, EndLine: line,
				ScopeKind: entity.ScopeDependency,
				TypeText:  m[1],
			})
			continue
		}
		if m := gradlePluginRe.FindStringSubmatch(text); m != nil {
			pf.Imports = append(pf.Imports, entity.Import{
				Kind: entity.ImportPlugin, Module: m[1], Line: line,
			})
			continue
		}
		if m := gradleApplyRe.FindStringSubmatch(text); m != nil {
			pf.Imports = append(pf.Imports, entity.Import{
				Kind: entity.ImportPlugin, Module: m[1], Line: line,
			})
			continue
		}
		if m := gradleSDKRe.FindStringSubmatch(text); m != nil {
			pf.Globals = append(pf.Globals, entity.Variable{
				Name:      m[1],
				StartLine: line, EndLine: line,
				ScopeKind: entity.ScopeSDKVersion,
				TypeText:  m[2],
			})
			continue
		}
		if m := gradleIncRe.FindStringSubmatch(text); m != nil {
			pf.Imports = append(pf.Imports, entity.Import{
				Kind: entity.ImportInclude, Module: m[1], Line: line,
			})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseFailure{Path: path, Reason: "read", Err: err}
	}

	pf.Sanitize()
	return pf, nil
}

func isMostlyText(b []byte) bool {
	if bytes.IndexByte(b, 0) >= 0 {
		return false
	}
	return true
}
