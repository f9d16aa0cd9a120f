package parser

import (
	"testing"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

var testReg = lang.NewRegistry()

func parseSource(t *testing.T, path, src string) *entity.ParsedFile {
	t.Helper()
	pf, err := ParseFile(testReg, path, []byte(src))
	if err != nil {
		t.Fatalf("ParseFile(%s): %v", path, err)
	}
	return pf
}

func findClass(t *testing.T, pf *entity.ParsedFile, name string) *entity.Class {
	t.Helper()
	for i := range pf.Classes {
		if pf.Classes[i].Name == name {
			return &pf.Classes[i]
		}
	}
	t.Fatalf("class %s not found in %+v", name, pf.Classes)
	return nil
}

func findFunc(t *testing.T, pf *entity.ParsedFile, name string) *entity.Function {
	t.Helper()
	for i := range pf.Functions {
		if pf.Functions[i].Name == name {
			return &pf.Functions[i]
		}
	}
	t.Fatalf("function %s not found in %+v", name, pf.Functions)
	return nil
}

func hasCall(fn *entity.Function, callee string, ct entity.CallType) bool {
	for _, c := range fn.Calls {
		if c.Callee == callee && c.Type == ct {
			return true
		}
	}
	return false
}

func TestParsePython(t *testing.T) {
	src := `import os
from collections import OrderedDict

LIMIT = 10

class Base:
    count = 0

    def run(self):
        tmp = self.count
        return tmp

class Child(Base):
    def go(self):
        self.run()

def call_child():
    c = Child()
    c.run()
`
	pf := parseSource(t, "app.py", src)

	if len(pf.Imports) != 2 {
		t.Fatalf("imports = %+v", pf.Imports)
	}
	if pf.Imports[0].Module != "os" || pf.Imports[0].Kind != entity.ImportDirect {
		t.Errorf("import os = %+v", pf.Imports[0])
	}
	if pf.Imports[1].Module != "collections" || pf.Imports[1].Kind != entity.ImportFrom {
		t.Errorf("from collections = %+v", pf.Imports[1])
	}
	if len(pf.Imports[1].Names) != 1 || pf.Imports[1].Names[0].Name != "OrderedDict" {
		t.Errorf("imported names = %+v", pf.Imports[1].Names)
	}

	if len(pf.Globals) != 1 || pf.Globals[0].Name != "LIMIT" {
		t.Fatalf("globals = %+v", pf.Globals)
	}

	base := findClass(t, pf, "Base")
	if len(base.Attributes) != 1 || base.Attributes[0].Name != "count" {
		t.Errorf("Base attributes = %+v", base.Attributes)
	}
	if len(base.Methods) != 1 || base.Methods[0].Name != "run" {
		t.Fatalf("Base methods = %+v", base.Methods)
	}
	run := base.Methods[0]
	if run.OwnerClass != "Base" || len(run.Parameters) != 1 || run.Parameters[0].Name != "self" {
		t.Errorf("run = %+v", run)
	}
	if len(run.Locals) == 0 || run.Locals[0].Name != "tmp" {
		t.Errorf("run locals = %+v", run.Locals)
	}

	child := findClass(t, pf, "Child")
	if len(child.Supers) != 1 || child.Supers[0] != "Base" {
		t.Errorf("Child supers = %+v", child.Supers)
	}
	if !hasCall(&child.Methods[0], "run", entity.CallInstanceMethod) {
		t.Errorf("go() calls = %+v", child.Methods[0].Calls)
	}

	cc := findFunc(t, pf, "call_child")
	if !hasCall(cc, "Child", entity.CallConstructor) {
		t.Errorf("expected constructor call, got %+v", cc.Calls)
	}
	if !hasCall(cc, "run", entity.CallOnObject) {
		t.Errorf("expected on_object call, got %+v", cc.Calls)
	}
	if len(cc.Creates) != 1 || cc.Creates[0].Class != "Child" {
		t.Errorf("creates = %+v", cc.Creates)
	}
	if len(cc.Locals) == 0 || cc.Locals[0].Name != "c" {
		t.Errorf("locals = %+v", cc.Locals)
	}
}

func TestParsePythonExceptionsAndDecorators(t *testing.T) {
	src := `class Worker:
    @staticmethod
    def risky():
        raise ValueError("bad")

def guard():
    try:
        pass
    except KeyError:
        pass
`
	pf := parseSource(t, "w.py", src)

	w := findClass(t, pf, "Worker")
	if len(w.Methods) != 1 {
		t.Fatalf("methods = %+v", w.Methods)
	}
	risky := w.Methods[0]
	if len(risky.Decorators) != 1 || risky.Decorators[0] != "staticmethod" {
		t.Errorf("decorators = %+v", risky.Decorators)
	}
	if len(risky.Raises) != 1 || risky.Raises[0] != "ValueError" {
		t.Errorf("raises = %+v", risky.Raises)
	}

	guard := findFunc(t, pf, "guard")
	if len(guard.Handles) != 1 || guard.Handles[0] != "KeyError" {
		t.Errorf("handles = %+v", guard.Handles)
	}
}

func TestParsePythonPartialOnSyntaxError(t *testing.T) {
	src := `def good():
    pass

def broken(:
`
	pf := parseSource(t, "p.py", src)
	// Partial-result policy: the valid function still comes out.
	findFunc(t, pf, "good")
}

func TestParseJava(t *testing.T) {
	src := `package app;

import java.util.List;
import java.io.*;

public class Service extends Base {
    private int count;

    public void run() throws IOException {
        Logger logger = new Logger();
        logger.log("hi");
        this.helper();
        count = 1;
    }

    private void helper() {}
}

class Logger {
    public void log(String msg) {}
}
`
	pf := parseSource(t, "Service.java", src)

	if len(pf.Imports) != 2 {
		t.Fatalf("imports = %+v", pf.Imports)
	}
	if pf.Imports[0].Module != "java.util.List" {
		t.Errorf("import = %+v", pf.Imports[0])
	}
	if pf.Imports[1].Kind != entity.ImportWildcard || pf.Imports[1].Module != "java.io" {
		t.Errorf("wildcard import = %+v", pf.Imports[1])
	}

	svc := findClass(t, pf, "Service")
	if len(svc.Supers) != 1 || svc.Supers[0] != "Base" {
		t.Errorf("supers = %+v", svc.Supers)
	}
	if len(svc.Attributes) != 1 || svc.Attributes[0].Name != "count" {
		t.Errorf("attributes = %+v", svc.Attributes)
	}

	var run *entity.Function
	for i := range svc.Methods {
		if svc.Methods[i].Name == "run" {
			run = &svc.Methods[i]
		}
	}
	if run == nil {
		t.Fatalf("run not found: %+v", svc.Methods)
	}
	if !hasCall(run, "Logger", entity.CallConstructor) {
		t.Errorf("expected constructor, got %+v", run.Calls)
	}
	if !hasCall(run, "log", entity.CallOnObject) {
		t.Errorf("expected on_object, got %+v", run.Calls)
	}
	if !hasCall(run, "helper", entity.CallInstanceMethod) {
		t.Errorf("expected instance call, got %+v", run.Calls)
	}
	if len(run.Raises) != 1 || run.Raises[0] != "IOException" {
		t.Errorf("raises = %+v", run.Raises)
	}
	if len(run.Locals) != 1 || run.Locals[0].Name != "logger" {
		t.Errorf("locals = %+v", run.Locals)
	}
	// count = 1 writes a field, not a local.
	found := false
	for _, m := range run.Modifies {
		if m.Name == "count" {
			found = true
		}
	}
	if !found {
		t.Errorf("modifies = %+v", run.Modifies)
	}
}

func TestParseGo(t *testing.T) {
	src := `package demo

import (
	"fmt"
	gz "compress/gzip"
)

var limit = 10

type Widget struct {
	size int
}

func (w *Widget) Render() {
	fmt.Println(w.size)
}

func main() {
	w := Widget{}
	w.Render()
}
`
	pf := parseSource(t, "demo.go", src)

	if len(pf.Imports) != 2 {
		t.Fatalf("imports = %+v", pf.Imports)
	}
	if pf.Imports[1].Names[0].Alias != "gz" {
		t.Errorf("alias = %+v", pf.Imports[1])
	}
	if len(pf.Globals) != 1 || pf.Globals[0].Name != "limit" {
		t.Errorf("globals = %+v", pf.Globals)
	}

	widget := findClass(t, pf, "Widget")
	if len(widget.Attributes) != 1 || widget.Attributes[0].Name != "size" {
		t.Errorf("fields = %+v", widget.Attributes)
	}
	if widget.Attributes[0].ScopeKind != entity.ScopeStructField {
		t.Errorf("field scope = %v", widget.Attributes[0].ScopeKind)
	}

	render := findFunc(t, pf, "Render")
	if render.OwnerClass != "Widget" {
		t.Errorf("owner = %q", render.OwnerClass)
	}
	if !render.Attrs.Has(entity.AttrExported) {
		t.Error("Render should be exported")
	}

	main := findFunc(t, pf, "main")
	if !hasCall(main, "Println", entity.CallOnObject) {
		t.Errorf("calls = %+v", main.Calls)
	}
	if !hasCall(main, "Render", entity.CallOnObject) {
		t.Errorf("calls = %+v", main.Calls)
	}
	if len(main.Locals) != 1 || main.Locals[0].Name != "w" {
		t.Errorf("locals = %+v", main.Locals)
	}
}

func TestParseJavaScript(t *testing.T) {
	src := `import { helper } from './util.js';

const LIMIT = 5;

class Widget extends Base {
  render() {
    this.draw();
  }
  draw() {}
}

function main() {
  const w = new Widget();
  w.render();
  helper();
}
`
	pf := parseSource(t, "app.js", src)

	if len(pf.Imports) != 1 || pf.Imports[0].Module != "./util.js" {
		t.Fatalf("imports = %+v", pf.Imports)
	}
	if len(pf.Imports[0].Names) != 1 || pf.Imports[0].Names[0].Name != "helper" {
		t.Errorf("names = %+v", pf.Imports[0].Names)
	}
	if len(pf.Globals) != 1 || pf.Globals[0].Name != "LIMIT" {
		t.Errorf("globals = %+v", pf.Globals)
	}

	widget := findClass(t, pf, "Widget")
	if len(widget.Supers) != 1 || widget.Supers[0] != "Base" {
		t.Errorf("supers = %+v", widget.Supers)
	}
	if len(widget.Methods) != 2 {
		t.Fatalf("methods = %+v", widget.Methods)
	}
	if !hasCall(&widget.Methods[0], "draw", entity.CallInstanceMethod) {
		t.Errorf("render calls = %+v", widget.Methods[0].Calls)
	}

	main := findFunc(t, pf, "main")
	if !hasCall(main, "Widget", entity.CallConstructor) {
		t.Errorf("calls = %+v", main.Calls)
	}
	if !hasCall(main, "render", entity.CallOnObject) {
		t.Errorf("calls = %+v", main.Calls)
	}
	if !hasCall(main, "helper", entity.CallDirect) {
		t.Errorf("calls = %+v", main.Calls)
	}
}

func TestParseKotlin(t *testing.T) {
	src := `import kotlinx.coroutines.launch

class Repo(val api: Api) {
    suspend fun fetch(): Data {
        val data = api.get()
        return data
    }
}
`
	pf := parseSource(t, "Repo.kt", src)

	if len(pf.Imports) != 1 || pf.Imports[0].Module != "kotlinx.coroutines.launch" {
		t.Fatalf("imports = %+v", pf.Imports)
	}

	repo := findClass(t, pf, "Repo")
	if len(repo.Attributes) == 0 || repo.Attributes[0].Name != "api" {
		t.Errorf("ctor properties = %+v", repo.Attributes)
	}
	if len(repo.Methods) != 1 {
		t.Fatalf("methods = %+v", repo.Methods)
	}
	fetch := repo.Methods[0]
	if fetch.Name != "fetch" {
		t.Errorf("method = %+v", fetch)
	}
	if !fetch.Attrs.Has(entity.AttrSuspend) {
		t.Error("fetch should carry the suspend marker")
	}
	if !hasCall(&fetch, "get", entity.CallOnObject) {
		t.Errorf("calls = %+v", fetch.Calls)
	}
}

func TestParseManifest(t *testing.T) {
	src := `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="com.example.app">
    <uses-permission android:name="android.permission.INTERNET" />
    <uses-sdk android:minSdkVersion="24" android:targetSdkVersion="34" />
    <application>
        <activity android:name=".ui.MainActivity" android:exported="true" />
        <service android:name=".sync.SyncService" android:exported="false" />
    </application>
</manifest>
`
	pf := parseSource(t, "AndroidManifest.xml", src)

	if len(pf.Imports) != 1 || pf.Imports[0].Module != "com.example.app" || pf.Imports[0].Kind != entity.ImportPackage {
		t.Errorf("package import = %+v", pf.Imports)
	}

	var perms, sdks int
	for _, g := range pf.Globals {
		switch g.ScopeKind {
		case entity.ScopePermission:
			perms++
			if g.Name != "android.permission.INTERNET" {
				t.Errorf("permission = %+v", g)
			}
		case entity.ScopeSDKVersion:
			sdks++
		}
	}
	if perms != 1 || sdks != 2 {
		t.Errorf("globals = %+v", pf.Globals)
	}

	act := findClass(t, pf, "MainActivity")
	if !act.Attrs.Has(entity.AttrActivity) || !act.Attrs.Has(entity.AttrExported) {
		t.Errorf("activity attrs = %b", act.Attrs)
	}
	if act.Attrs.ComponentKind() != "activity" {
		t.Errorf("component kind = %q", act.Attrs.ComponentKind())
	}
	svc := findClass(t, pf, "SyncService")
	if !svc.Attrs.Has(entity.AttrService) || svc.Attrs.Has(entity.AttrExported) {
		t.Errorf("service attrs = %b", svc.Attrs)
	}
}

func TestParseManifestMalformed(t *testing.T) {
	_, err := ParseFile(testReg, "AndroidManifest.xml", []byte("<manifest><unclosed"))
	if err == nil {
		t.Fatal("expected ParseFailure for malformed xml")
	}
	if _, ok := err.(*ParseFailure); !ok {
		t.Fatalf("expected *ParseFailure, got %T", err)
	}
}

func TestParseGradle(t *testing.T) {
	src := `plugins {
    id 'com.android.application'
    id("org.jetbrains.kotlin.android") version "1.9.0"
}

android {
    compileSdk 34
    defaultConfig {
        minSdk = 24
    }
}

dependencies {
    implementation 'com.squareup.okhttp3:okhttp:4.12.0'
    testImplementation("junit:junit:4.13.2")
    // implementation 'commented:out:1.0'
}
`
	pf := parseSource(t, "build.gradle", src)

	var plugins []string
	for _, imp := range pf.Imports {
		if imp.Kind == entity.ImportPlugin {
			plugins = append(plugins, imp.Module)
		}
	}
	if len(plugins) != 2 || plugins[0] != "com.android.application" {
		t.Errorf("plugins = %v", plugins)
	}

	var deps, sdks []entity.Variable
	for _, g := range pf.Globals {
		switch g.ScopeKind {
		case entity.ScopeDependency:
			deps = append(deps, g)
		case entity.ScopeSDKVersion:
			sdks = append(sdks, g)
		}
	}
	if len(deps) != 2 {
		t.Fatalf("deps = %+v", deps)
	}
	if deps[0].Name != "com.squareup.okhttp3:okhttp:4.12.0" || deps[0].TypeText != "implementation" {
		t.Errorf("dep = %+v", deps[0])
	}
	if len(sdks) != 2 {
		t.Errorf("sdk versions = %+v", sdks)
	}
}

func TestGradleWinsOverKotlinForBuildFiles(t *testing.T) {
	spec := testReg.ForPath("some/dir/build.gradle.kts")
	if spec == nil || spec.Language != lang.Gradle {
		t.Fatalf("build.gradle.kts routed to %+v", spec)
	}
	spec = testReg.ForPath("src/Repo.kt")
	if spec == nil || spec.Language != lang.Kotlin {
		t.Fatalf("Repo.kt routed to %+v", spec)
	}
}

func TestParseFileUnknownExtension(t *testing.T) {
	_, err := ParseFile(testReg, "image.png", []byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for unknown extension")
	}
}
